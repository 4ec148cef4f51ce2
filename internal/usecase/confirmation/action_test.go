package confirmation

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"testing"

	domain "readconfirm/internal/domain/confirmation"
	"readconfirm/internal/domain/eligibility"
	"readconfirm/internal/ports"
)

func TestIsAllowedSingleFailures(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	svc := env.svc

	reader := mustSaveUser(t, svc, "reader", ports.RoleSubscriber)
	post := mustCreateItem(t, svc, CreateItemInput{Type: "post", Title: "Policy"})
	product := mustCreateItem(t, svc, CreateItemInput{Type: "product", Title: "Widget"})
	private := mustCreateItem(t, svc, CreateItemInput{Type: "post", Title: "Secret", Status: ports.StatusPrivate, AuthorID: 999})
	disabled := mustCreateItem(t, svc, CreateItemInput{Type: "page", Title: "Draft rules"})
	for _, id := range []uint64{post.ItemID, product.ItemID, private.ItemID} {
		if err := svc.SetEnabled(ctx, id, true); err != nil {
			t.Fatalf("SetEnabled() error = %v", err)
		}
	}

	cases := []struct {
		name   string
		viewer ports.Viewer
		itemID uint64
		want   eligibility.Reason
	}{
		{name: "all conditions hold", viewer: reader, itemID: post.ItemID, want: eligibility.ReasonNone},
		{name: "unsupported type", viewer: reader, itemID: product.ItemID, want: eligibility.ReasonTypeUnsupported},
		{name: "anonymous viewer", viewer: ports.Viewer{}, itemID: post.ItemID, want: eligibility.ReasonNotAuthenticated},
		{name: "no read permission", viewer: reader, itemID: private.ItemID, want: eligibility.ReasonNoReadPermission},
		{name: "flag unset", viewer: reader, itemID: disabled.ItemID, want: eligibility.ReasonNotEnabled},
		{name: "missing item", viewer: reader, itemID: 9999, want: eligibility.ReasonItemNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision, err := svc.IsAllowed(ctx, tc.viewer, tc.itemID)
			if err != nil {
				t.Fatalf("IsAllowed() error = %v", err)
			}
			if decision.Allowed != (tc.want == eligibility.ReasonNone) || decision.Reason != tc.want {
				t.Fatalf("IsAllowed() = %+v, want reason %q", decision, tc.want)
			}
		})
	}
}

func TestSetEnabledTogglesFlag(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	if err := env.svc.SetEnabled(ctx, 12, true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}
	raw, found, _ := env.content.GetMeta(ctx, 12, domain.MetaEnabled)
	if !found || raw != "1" {
		t.Fatalf("flag = %q found=%v, want 1", raw, found)
	}
	if err := env.svc.SetEnabled(ctx, 12, false); err != nil {
		t.Fatalf("SetEnabled(false) error = %v", err)
	}
	if _, found, _ := env.content.GetMeta(ctx, 12, domain.MetaEnabled); found {
		t.Fatalf("flag still present after disable")
	}
}

func newActionRequest(t *testing.T, svc *Service, action domain.Action, viewer ports.Viewer, itemID uint64) ActionRequest {
	t.Helper()

	token, err := svc.IssueToken(context.Background(), action, viewer, itemID)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return ActionRequest{
		Action:  action,
		Token:   token,
		ItemID:  strconv.FormatUint(itemID, 10),
		Viewer:  viewer,
		Referer: "https://example.test/items/" + strconv.FormatUint(itemID, 10) + "?page=2",
		Host:    "example.test",
	}
}

func TestHandleActionOutcomes(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	svc := env.svc

	reader := mustSaveUser(t, svc, "reader", ports.RoleSubscriber)
	item := mustCreateItem(t, svc, CreateItemInput{Type: "post", Title: "Handbook"})
	disabled := mustCreateItem(t, svc, CreateItemInput{Type: "post", Title: "Old handbook"})
	if err := svc.SetEnabled(ctx, item.ItemID, true); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}

	req := newActionRequest(t, svc, domain.ActionConfirm, reader, item.ItemID)
	result := svc.HandleAction(ctx, req)
	if result.Outcome != domain.OutcomeApplied {
		t.Fatalf("confirm outcome = %q (err=%v), want applied", result.Outcome, result.Err)
	}
	redirect, err := url.Parse(result.Redirect)
	if err != nil {
		t.Fatalf("parse redirect %q: %v", result.Redirect, err)
	}
	if redirect.Path != "/items/"+strconv.FormatUint(item.ItemID, 10) ||
		redirect.Query().Get(domain.ParamStatus) != "confirmed" ||
		redirect.Query().Get("page") != "2" {
		t.Fatalf("redirect = %q", result.Redirect)
	}

	replay := svc.HandleAction(ctx, req)
	if replay.Outcome != domain.OutcomeRejectedBadToken || replay.Redirect != "" {
		t.Fatalf("replayed token outcome = %q redirect=%q", replay.Outcome, replay.Redirect)
	}

	again := svc.HandleAction(ctx, newActionRequest(t, svc, domain.ActionConfirm, reader, item.ItemID))
	if again.Outcome != domain.OutcomeUnchanged {
		t.Fatalf("second confirm outcome = %q, want unchanged", again.Outcome)
	}

	wrongNamespace := newActionRequest(t, svc, domain.ActionConfirm, reader, item.ItemID)
	wrongNamespace.Action = domain.ActionUnconfirm
	if got := svc.HandleAction(ctx, wrongNamespace); got.Outcome != domain.OutcomeRejectedBadToken {
		t.Fatalf("cross-action token outcome = %q, want rejected_bad_token", got.Outcome)
	}

	otherUser := newActionRequest(t, svc, domain.ActionUnconfirm, reader, item.ItemID)
	otherUser.Viewer = ports.Viewer{UserID: reader.UserID + 1, Role: ports.RoleSubscriber}
	if got := svc.HandleAction(ctx, otherUser); got.Outcome != domain.OutcomeRejectedBadToken {
		t.Fatalf("foreign token outcome = %q, want rejected_bad_token", got.Outcome)
	}

	missing := newActionRequest(t, svc, domain.ActionConfirm, reader, 9999)
	if got := svc.HandleAction(ctx, missing); got.Outcome != domain.OutcomeRejectedMissingItem {
		t.Fatalf("missing item outcome = %q", got.Outcome)
	}

	garbage := newActionRequest(t, svc, domain.ActionConfirm, reader, item.ItemID)
	garbage.ItemID = "abc"
	if got := svc.HandleAction(ctx, garbage); got.Outcome != domain.OutcomeRejectedMissingItem {
		t.Fatalf("garbage item id outcome = %q", got.Outcome)
	}

	notEligible := svc.HandleAction(ctx, newActionRequest(t, svc, domain.ActionConfirm, reader, disabled.ItemID))
	if notEligible.Outcome != domain.OutcomeRejectedNotEligible || notEligible.Reason != eligibility.ReasonNotEnabled {
		t.Fatalf("disabled item outcome = %q reason=%q", notEligible.Outcome, notEligible.Reason)
	}
	assertConfirmed(t, svc, disabled.ItemID)

	unconfirm := svc.HandleAction(ctx, newActionRequest(t, svc, domain.ActionUnconfirm, reader, item.ItemID))
	if unconfirm.Outcome != domain.OutcomeApplied || !strings.Contains(unconfirm.Redirect, "hm-car-status=unconfirmed") {
		t.Fatalf("unconfirm = %+v", unconfirm)
	}
	assertConfirmed(t, svc, item.ItemID)

	if got := env.metrics.OutcomeCount(string(domain.ActionConfirm), string(domain.OutcomeRejectedBadToken)); got != 1 {
		t.Fatalf("bad token count = %v, want 1", got)
	}
	if got := env.metrics.OutcomeCount(string(domain.ActionConfirm), string(domain.OutcomeApplied)); got != 1 {
		t.Fatalf("applied count = %v, want 1", got)
	}
}

func TestRedirectTarget(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		referer string
		want    string
	}{
		{name: "same host", referer: "https://example.test/items/4?x=1", want: "https://example.test/items/4?hm-car-status=confirmed&x=1"},
		{name: "strips tokens", referer: "/items/4?hm-car-action-confirm-nonce=abc&hm-car-post-id=4", want: "/items/4?hm-car-status=confirmed"},
		{name: "other host", referer: "https://evil.test/phish", want: "/items/4?hm-car-status=confirmed"},
		{name: "protocol relative", referer: "//evil.test/phish", want: "/items/4?hm-car-status=confirmed"},
		{name: "empty", referer: "", want: "/items/4?hm-car-status=confirmed"},
		{name: "javascript", referer: "javascript:alert(1)", want: "/items/4?hm-car-status=confirmed"},
	}
	for _, tc := range cases {
		if got := RedirectTarget(tc.referer, "example.test", 4, "confirmed"); got != tc.want {
			t.Fatalf("%s: RedirectTarget() = %q, want %q", tc.name, got, tc.want)
		}
	}
}
