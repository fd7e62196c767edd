package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePortal serves the portal pages and the identity provider from one server.
type fakePortal struct {
	mu            sync.Mutex
	password      string
	sessions      map[string]bool
	logins        int
	validations   int
	participants  int
	bookings      []map[string]string
	scheduleForms []map[string]string
}

func newFakePortal(password string) *fakePortal {
	return &fakePortal{password: password, sessions: map[string]bool{}}
}

func (f *fakePortal) authenticated(r *http.Request) bool {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return false
	}
	return f.sessions[cookie.Value]
}

func (f *fakePortal) expireSessions() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = map[string]bool{}
}

func formValues(r *http.Request) map[string]string {
	_ = r.ParseForm()
	out := map[string]string{}
	for k := range r.PostForm {
		out[k] = r.PostForm.Get(k)
	}
	return out
}

func (f *fakePortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case indexPath:
		fmt.Fprint(w, "<html>index</html>")
	case "/sso/login":
		fmt.Fprint(w, `<html><form action="/idp/profile?execution=e1s1" method="post">
<input type="hidden" name="csrf_token" value="tok">
<input type="hidden" name="_eventId_authn/SPNEGO" value="spnego">
<input name="j_username"><input type="password" name="j_password">
</form></html>`)
	case "/idp/profile":
		values := formValues(r)
		_, spnego := values["_eventId_authn/SPNEGO"]
		if values["j_password"] != f.password || values["csrf_token"] != "tok" || spnego {
			fmt.Fprint(w, `<html><form action="/idp/profile"><input name="j_username"></form>Log in</html>`)
			return
		}
		fmt.Fprint(w, `<html><body onload="document.forms[0].submit()"><form action="/sso/assertion" method="post">
<input type="hidden" name="RelayState" value="relay">
<input type="hidden" name="SAMLResponse" value="assertion">
<input type="hidden" name="Empty" value="">
</form></body></html>`)
	case "/sso/assertion":
		values := formValues(r)
		if values["SAMLResponse"] != "assertion" {
			http.Error(w, "bad assertion", http.StatusForbidden)
			return
		}
		f.logins++
		id := fmt.Sprintf("session-%d", f.logins)
		f.sessions[id] = true
		http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: id, Path: "/"})
		fmt.Fprint(w, "<html>welcome</html>")
	case schedulePath:
		if !f.authenticated(r) {
			fmt.Fprint(w, "<html><a>Log in</a></html>")
			return
		}
		if r.Method == http.MethodGet {
			f.validations++
			fmt.Fprint(w, "<html>schedule</html>")
			return
		}
		f.scheduleForms = append(f.scheduleForms, formValues(r))
		fmt.Fprint(w, "<html><table class=\"bgTabell\"></table></html>")
	case bookingPath:
		if !f.authenticated(r) {
			fmt.Fprint(w, "<html><a>Log in</a></html>")
			return
		}
		values := formValues(r)
		if values["laggTillPersonID"] != "" {
			f.participants++
			fmt.Fprint(w, "<html>participant added</html>")
			return
		}
		f.bookings = append(f.bookings, values)
		if values["namn"] == "" {
			fmt.Fprint(w, `<html><ul class="errorMessage"><li><span>Title required</span></li></ul></html>`)
			return
		}
		fmt.Fprint(w, "<html>ok</html>")
	default:
		http.NotFound(w, r)
	}
}

func stubOutcome(r io.Reader) (string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if strings.Contains(string(body), "errorMessage") {
		return "Title required", nil
	}
	return "", nil
}

type recordingObserver struct {
	mu         sync.Mutex
	operations []string
}

func (o *recordingObserver) ObserveUpstream(operation string, _ int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.operations = append(o.operations, operation)
}

func newTestClient(t *testing.T, portal *fakePortal, staff bool) (*Client, *recordingObserver) {
	t.Helper()
	server := httptest.NewServer(portal)
	t.Cleanup(server.Close)

	observer := &recordingObserver{}
	client, err := New(Config{
		BaseURL:           server.URL,
		StudentLoginURL:   server.URL + "/sso/login",
		StaffLoginURL:     server.URL + "/sso/login",
		Username:          "student",
		Password:          "secret",
		Staff:             staff,
		ParticipantSearch: "friend",
		ParticipantID:     "42",
	}, stubOutcome, observer, nil)
	require.NoError(t, err)
	return client, observer
}

func TestFetchScheduleLogsInOnce(t *testing.T) {
	fake := newFakePortal("secret")
	client, observer := newTestClient(t, fake, false)
	date := time.Date(2024, time.April, 7, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		body, err := client.FetchSchedule(context.Background(), date, GroupRoomCategory)
		require.NoError(t, err)
		raw, err := io.ReadAll(body)
		require.NoError(t, err)
		body.Close()
		assert.Contains(t, string(raw), "bgTabell")
	}

	assert.Equal(t, 1, fake.logins)
	assert.Equal(t, 0, fake.validations)
	require.Len(t, fake.scheduleForms, 2)
	assert.Equal(t, map[string]string{
		"lokalkategori": "68",
		"year":          "2024",
		"month":         "04",
		"day":           "07",
		"datumSubmit":   "Visa",
	}, fake.scheduleForms[0])
	assert.Contains(t, observer.operations, "login_assertion")
	assert.Contains(t, observer.operations, "fetch_schedule")
}

func TestEnsureSessionRevalidatesAfterInterval(t *testing.T) {
	fake := newFakePortal("secret")
	client, _ := newTestClient(t, fake, false)
	now := time.Date(2024, time.April, 7, 10, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }
	date := now

	body, err := client.FetchSchedule(context.Background(), date, GroupRoomCategory)
	require.NoError(t, err)
	body.Close()

	now = now.Add(61 * time.Minute)
	body, err = client.FetchSchedule(context.Background(), date, GroupRoomCategory)
	require.NoError(t, err)
	body.Close()
	assert.Equal(t, 1, fake.logins)
	assert.Equal(t, 1, fake.validations)

	fake.expireSessions()
	now = now.Add(61 * time.Minute)
	body, err = client.FetchSchedule(context.Background(), date, GroupRoomCategory)
	require.NoError(t, err)
	body.Close()
	assert.Equal(t, 2, fake.logins)
}

func TestSubmitBookingRegistersParticipantOncePerSession(t *testing.T) {
	fake := newFakePortal("secret")
	client, _ := newTestClient(t, fake, false)
	now := time.Date(2024, time.April, 7, 10, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	booking := BookingForm{Date: now, From: 9, To: 11, Category: GroupRoomCategory, RoomID: 634, Title: "Study"}
	require.NoError(t, client.SubmitBooking(context.Background(), booking))
	require.NoError(t, client.SubmitBooking(context.Background(), booking))
	assert.Equal(t, 1, fake.participants)

	require.Len(t, fake.bookings, 2)
	assert.Equal(t, "09:00", fake.bookings[0]["from"])
	assert.Equal(t, "11:00", fake.bookings[0]["to"])
	assert.Equal(t, "634", fake.bookings[0]["lokalID"])
	assert.Equal(t, "68", fake.bookings[0]["lokalkategoriID"])
	assert.Equal(t, "Study", fake.bookings[0]["namn"])

	fake.expireSessions()
	now = now.Add(2 * time.Hour)
	require.NoError(t, client.SubmitBooking(context.Background(), booking))
	assert.Equal(t, 2, fake.participants)
}

func TestSubmitBookingRejected(t *testing.T) {
	fake := newFakePortal("secret")
	client, _ := newTestClient(t, fake, false)

	err := client.SubmitBooking(context.Background(), BookingForm{
		Date: time.Now(), From: 9, To: 10, Category: GroupRoomCategory, RoomID: 634,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBookingRejected))

	var rejection *RejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, "Title required", rejection.Message)
}

func TestStaffCategoryRequiresStaffMode(t *testing.T) {
	fake := newFakePortal("secret")
	client, _ := newTestClient(t, fake, false)

	_, err := client.FetchSchedule(context.Background(), time.Now(), 71)
	assert.ErrorIs(t, err, ErrStaffRequired)
	assert.Equal(t, 0, fake.logins)

	staffClient, _ := newTestClient(t, newFakePortal("secret"), true)
	body, err := staffClient.FetchSchedule(context.Background(), time.Now(), 71)
	require.NoError(t, err)
	body.Close()
}

func TestLoginFailsWithWrongPassword(t *testing.T) {
	fake := newFakePortal("other")
	client, _ := newTestClient(t, fake, false)

	_, err := client.FetchSchedule(context.Background(), time.Now(), GroupRoomCategory)
	assert.ErrorIs(t, err, ErrLoginFailed)
}
