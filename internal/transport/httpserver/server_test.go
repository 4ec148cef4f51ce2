package httpserver

import (
	"context"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	domain "readconfirm/internal/domain/confirmation"
	"readconfirm/internal/infrastructure/access"
	"readconfirm/internal/infrastructure/cache"
	"readconfirm/internal/infrastructure/metrics"
	"readconfirm/internal/infrastructure/nonce"
	"readconfirm/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "readconfirm/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "readconfirm/internal/infrastructure/persistence/sqlite/uow"
	"readconfirm/internal/ports"
	"readconfirm/internal/usecase/confirmation"
)

const testUserHeader = "X-Remote-User"

type fixture struct {
	server *Server
	svc    *confirmation.Service
	reader ports.User
	editor ports.User
	admin  ports.User
	item   ports.ContentItem
}

func setupServer(t *testing.T) fixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "http.sqlite") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	tokenCache := cache.NewMemoryCache(time.Minute)
	issuer, err := nonce.NewHMACIssuer("http-secret", time.Hour, tokenCache)
	if err != nil {
		t.Fatalf("NewHMACIssuer() error = %v", err)
	}
	reg := metrics.NewRegistry()
	svc := confirmation.NewService(confirmation.Dependencies{
		Content:    sqliterepo.NewContentRepository(db),
		Users:      sqliterepo.NewUserRepository(db),
		Options:    sqliterepo.NewOptionRepository(db),
		UnitOfWork: sqliteuow.NewUnitOfWork(db),
		Access:     access.NewRolePolicy(),
		Tokens:     issuer,
		Cache:      tokenCache,
		Metrics:    reg,
	}, confirmation.Options{})

	server, err := New(svc, reg, Options{UserHeader: testUserHeader})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	f := fixture{server: server, svc: svc}
	for _, u := range []struct {
		login  string
		role   string
		target *ports.User
	}{
		{login: "reader", role: ports.RoleSubscriber, target: &f.reader},
		{login: "editor", role: ports.RoleEditor, target: &f.editor},
		{login: "admin", role: ports.RoleAdministrator, target: &f.admin},
	} {
		saved, err := svc.SaveUser(ctx, ports.User{Login: u.login, Role: u.role})
		if err != nil {
			t.Fatalf("SaveUser(%s) error = %v", u.login, err)
		}
		*u.target = saved
	}

	f.item, err = svc.CreateItem(ctx, confirmation.CreateItemInput{
		Type:  "post",
		Title: "Security handbook",
		Body:  "# Rules\n\nLock your screen. <script>alert(1)</script>",
	})
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	if err := svc.SetEnabled(ctx, f.item.ItemID, true); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	return f
}

func (f fixture) do(t *testing.T, method string, target string, user *ports.User, body url.Values, referer string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if user != nil {
		req.Header.Set(testUserHeader, strconv.FormatUint(user.UserID, 10))
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f fixture) itemPath() string {
	return "/items/" + strconv.FormatUint(f.item.ItemID, 10)
}

var actionLink = regexp.MustCompile(`class="hm-car-button" href="([^"]+)"`)

func extractActionLink(t *testing.T, body string) string {
	t.Helper()

	m := actionLink.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("action link not found in %s", body)
	}
	return html.UnescapeString(m[1])
}

var hiddenToken = regexp.MustCompile(`name="(hm_car_[a-z_]+_nonce)" value="([^"]+)"`)

func extractFormToken(t *testing.T, body string) string {
	t.Helper()

	m := hiddenToken.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("form token not found in %s", body)
	}
	return html.UnescapeString(m[2])
}

func TestHealthz(t *testing.T) {
	f := setupServer(t)

	rec := f.do(t, http.MethodGet, "/healthz", nil, nil, "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("GET /healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestItemPageShowsWidgetOnlyToEligibleViewers(t *testing.T) {
	f := setupServer(t)

	anonymous := f.do(t, http.MethodGet, f.itemPath(), nil, nil, "")
	if anonymous.Code != http.StatusOK {
		t.Fatalf("anonymous GET = %d", anonymous.Code)
	}
	body := anonymous.Body.String()
	if strings.Contains(body, `class="hm-car"`) || actionLink.MatchString(body) {
		t.Fatalf("widget shown to anonymous visitor")
	}
	if !strings.Contains(body, "<h1>Rules</h1>") || strings.Contains(body, "<script>alert(1)</script>") {
		t.Fatalf("markdown body not rendered safely: %s", body)
	}
	if !strings.Contains(body, ".hm-car{") {
		t.Fatalf("minified widget css missing")
	}

	reader := f.do(t, http.MethodGet, f.itemPath(), &f.reader, nil, "")
	if !strings.Contains(reader.Body.String(), "I confirm that I have read this post.") {
		t.Fatalf("reader page missing widget: %s", reader.Body.String())
	}
	if !actionLink.MatchString(reader.Body.String()) {
		t.Fatalf("reader page missing action link")
	}
	if strings.Contains(reader.Body.String(), `class="hm-car-report"`) {
		t.Fatalf("report shown to subscriber")
	}

	editor := f.do(t, http.MethodGet, f.itemPath(), &f.editor, nil, "")
	if !strings.Contains(editor.Body.String(), `class="hm-car-report"`) ||
		!strings.Contains(editor.Body.String(), "No users have confirmed.") {
		t.Fatalf("editor page missing report: %s", editor.Body.String())
	}

	missing := f.do(t, http.MethodGet, "/items/9999", &f.reader, nil, "")
	if missing.Code != http.StatusNotFound {
		t.Fatalf("missing item GET = %d", missing.Code)
	}
}

func TestConfirmLinkRedirectsAndReplayFallsThrough(t *testing.T) {
	f := setupServer(t)
	ctx := context.Background()

	page := f.do(t, http.MethodGet, f.itemPath(), &f.reader, nil, "")
	link := extractActionLink(t, page.Body.String())
	if !strings.Contains(link, domain.ParamConfirmToken) {
		t.Fatalf("link = %q, want confirm token", link)
	}

	referer := "http://example.com" + f.itemPath() + "?ref=menu"
	rec := f.do(t, http.MethodGet, link, &f.reader, nil, referer)
	if rec.Code != http.StatusFound {
		t.Fatalf("confirm GET = %d, want 302", rec.Code)
	}
	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if location.Path != f.itemPath() || location.Query().Get(domain.ParamStatus) != "confirmed" || location.Query().Get("ref") != "menu" {
		t.Fatalf("Location = %q", location)
	}
	if location.Query().Get(domain.ParamConfirmToken) != "" {
		t.Fatalf("Location kept token: %q", location)
	}
	if ok, err := f.svc.IsConfirmed(ctx, domain.UserID(f.reader.UserID), f.item.ItemID); err != nil || !ok {
		t.Fatalf("IsConfirmed() = %v err=%v", ok, err)
	}

	replay := f.do(t, http.MethodGet, link, &f.reader, nil, referer)
	if replay.Code != http.StatusOK {
		t.Fatalf("replayed confirm GET = %d, want page render", replay.Code)
	}
	if !strings.Contains(replay.Body.String(), "You have confirmed you have read this.") {
		t.Fatalf("replay page = %s", replay.Body.String())
	}

	confirmedPage := f.do(t, http.MethodGet, location.RequestURI(), &f.reader, nil, "")
	undo := extractActionLink(t, confirmedPage.Body.String())
	if !strings.Contains(undo, domain.ParamUnconfirmToken) || strings.Contains(undo, domain.ParamStatus) {
		t.Fatalf("undo link = %q", undo)
	}
	if rec := f.do(t, http.MethodGet, undo, &f.reader, nil, ""); rec.Code != http.StatusFound {
		t.Fatalf("unconfirm GET = %d, want 302", rec.Code)
	}
	if ok, _ := f.svc.IsConfirmed(ctx, domain.UserID(f.reader.UserID), f.item.ItemID); ok {
		t.Fatalf("still confirmed after unconfirm")
	}

	metricsBody := f.do(t, http.MethodGet, "/metrics", nil, nil, "").Body.String()
	if !strings.Contains(metricsBody, `readconfirm_action_outcomes_total{action="hm-car-action-confirm",outcome="applied"} 1`) {
		t.Fatalf("metrics missing applied counter: %s", metricsBody)
	}
}

func TestForeignTokenDoesNotConfirm(t *testing.T) {
	f := setupServer(t)

	page := f.do(t, http.MethodGet, f.itemPath(), &f.reader, nil, "")
	link := extractActionLink(t, page.Body.String())

	rec := f.do(t, http.MethodGet, link, &f.editor, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("foreign token GET = %d, want page render", rec.Code)
	}
	ids, err := f.svc.GetConfirmedUsers(context.Background(), f.item.ItemID)
	if err != nil || len(ids) != 0 {
		t.Fatalf("GetConfirmedUsers() = %v err=%v", ids, err)
	}
}

func TestItemAdminForm(t *testing.T) {
	f := setupServer(t)
	ctx := context.Background()
	path := "/admin/items/" + strconv.FormatUint(f.item.ItemID, 10)

	if _, err := f.svc.Confirm(ctx, domain.UserID(f.reader.UserID), f.item.ItemID); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}

	if rec := f.do(t, http.MethodGet, path, &f.reader, nil, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("reader GET admin = %d, want 403", rec.Code)
	}

	form := f.do(t, http.MethodGet, path, &f.editor, nil, "")
	if form.Code != http.StatusOK {
		t.Fatalf("editor GET admin = %d", form.Code)
	}
	token := extractFormToken(t, form.Body.String())

	bad := f.do(t, http.MethodPost, path, &f.editor, url.Values{domain.FieldEnabled: {"1"}, domain.FieldItemToken: {"forged"}}, "")
	if bad.Code != http.StatusForbidden {
		t.Fatalf("forged POST = %d, want 403", bad.Code)
	}

	rec := f.do(t, http.MethodPost, path, &f.editor, url.Values{
		domain.FieldEnabled:   {"1"},
		domain.FieldReset:     {"1"},
		domain.FieldItemToken: {token},
	}, "")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != path+"?saved=1" {
		t.Fatalf("POST admin = %d location=%q", rec.Code, rec.Header().Get("Location"))
	}
	ids, err := f.svc.GetConfirmedUsers(ctx, f.item.ItemID)
	if err != nil || len(ids) != 0 {
		t.Fatalf("record after reset = %v err=%v", ids, err)
	}
	if enabled, _ := f.svc.IsEnabled(ctx, f.item.ItemID); !enabled {
		t.Fatalf("item disabled after save with enabled checked")
	}

	token = extractFormToken(t, f.do(t, http.MethodGet, path, &f.editor, nil, "").Body.String())
	rec = f.do(t, http.MethodPost, path, &f.editor, url.Values{domain.FieldItemToken: {token}}, "")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("POST admin (disable) = %d", rec.Code)
	}
	if enabled, _ := f.svc.IsEnabled(ctx, f.item.ItemID); enabled {
		t.Fatalf("item still enabled after unchecking")
	}
}

func TestSettingsAdminForm(t *testing.T) {
	f := setupServer(t)

	if rec := f.do(t, http.MethodGet, "/admin/settings", &f.editor, nil, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("editor GET settings = %d, want 403", rec.Code)
	}

	form := f.do(t, http.MethodGet, "/admin/settings", &f.admin, nil, "")
	if form.Code != http.StatusOK || !strings.Contains(form.Body.String(), `name="hm_confirm_as_read_settings[button_text]"`) {
		t.Fatalf("admin GET settings = %d %s", form.Code, form.Body.String())
	}
	token := extractFormToken(t, form.Body.String())

	rec := f.do(t, http.MethodPost, "/admin/settings", &f.admin, url.Values{
		"hm_confirm_as_read_settings[button_text]": {"<em>Done</em> reading"},
		"hm_confirm_as_read_settings[bogus]":       {"x"},
		domain.FieldSettingsToken:                  {token},
	}, "")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("POST settings = %d", rec.Code)
	}

	page := f.do(t, http.MethodGet, f.itemPath(), &f.reader, nil, "")
	if !strings.Contains(page.Body.String(), ">Done reading</a>") {
		t.Fatalf("custom button text not rendered: %s", page.Body.String())
	}
}

func TestSettingsCharacterReferencesRenderOnce(t *testing.T) {
	f := setupServer(t)

	form := f.do(t, http.MethodGet, "/admin/settings", &f.admin, nil, "")
	token := extractFormToken(t, form.Body.String())

	rec := f.do(t, http.MethodPost, "/admin/settings", &f.admin, url.Values{
		"hm_confirm_as_read_settings[button_text]": {"Q&amp;A read"},
		domain.FieldSettingsToken:                  {token},
	}, "")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("POST settings = %d", rec.Code)
	}

	page := f.do(t, http.MethodGet, f.itemPath(), &f.reader, nil, "").Body.String()
	if !strings.Contains(page, ">Q&amp;A read</a>") || strings.Contains(page, "&amp;amp;") {
		t.Fatalf("button text rendered as %s", page)
	}

	again := f.do(t, http.MethodGet, "/admin/settings", &f.admin, nil, "").Body.String()
	if !strings.Contains(again, `value="Q&amp;amp;A read"`) {
		t.Fatalf("stored button text changed: %s", again)
	}
}
