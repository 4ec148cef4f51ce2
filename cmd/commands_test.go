package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	domain "readconfirm/internal/domain/confirmation"
	"readconfirm/internal/infrastructure/access"
	"readconfirm/internal/infrastructure/cache"
	"readconfirm/internal/infrastructure/metrics"
	"readconfirm/internal/infrastructure/nonce"
	"readconfirm/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "readconfirm/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "readconfirm/internal/infrastructure/persistence/sqlite/uow"
	"readconfirm/internal/usecase/confirmation"
)

const seedFixture = `
[[users]]
id = 7
login = "alice"
display_name = "Alice"
role = "subscriber"

[[users]]
id = 8
login = "bob"
role = "editor"

[[items]]
id = 42
title = "Handbook"
body = "Read **all** of it."
author_id = 8
enabled = true
confirmed_by = [7, 7]
`

func setupService(t *testing.T) *confirmation.Service {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "readconfirm.sqlite") + "?_pragma=busy_timeout(5000)"
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

	memory := cache.NewMemoryCache(time.Minute)
	issuer, err := nonce.NewHMACIssuer("cmd-test-secret", time.Hour, memory)
	if err != nil {
		t.Fatalf("NewHMACIssuer() error = %v", err)
	}
	return confirmation.NewService(confirmation.Dependencies{
		Content:    sqliterepo.NewContentRepository(db),
		Users:      sqliterepo.NewUserRepository(db),
		Options:    sqliterepo.NewOptionRepository(db),
		UnitOfWork: sqliteuow.NewUnitOfWork(db),
		Access:     access.NewRolePolicy(),
		Tokens:     issuer,
		Cache:      memory,
		Metrics:    metrics.NewRegistry(),
	}, confirmation.Options{})
}

func writeSeedFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "seed.toml")
	if err := os.WriteFile(path, []byte(seedFixture), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	return path
}

func runCmd(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("%s %v error = %v\n%s", cmd.Use, args, err, out.String())
	}
	return out.String()
}

func TestItemCreateFlags(t *testing.T) {
	t.Parallel()

	cmd := newItemCreateCmd(nil)
	if err := cmd.ParseFlags([]string{
		"--id", "42",
		"--type", "page",
		"--title", "Handbook",
		"--author", "8",
		"--status", "private",
		"--enabled",
	}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	itemID, _ := cmd.Flags().GetUint64("id")
	if itemID != 42 {
		t.Fatalf("id = %d, want 42", itemID)
	}
	itemType, _ := cmd.Flags().GetString("type")
	if itemType != "page" {
		t.Fatalf("type = %q, want page", itemType)
	}
	authorID, _ := cmd.Flags().GetUint64("author")
	if authorID != 8 {
		t.Fatalf("author = %d, want 8", authorID)
	}
	status, _ := cmd.Flags().GetString("status")
	if status != "private" {
		t.Fatalf("status = %q, want private", status)
	}
	enabled, _ := cmd.Flags().GetBool("enabled")
	if !enabled {
		t.Fatal("enabled = false, want true")
	}
}

func TestSettingsSetFlags(t *testing.T) {
	t.Parallel()

	cmd := newSettingsSetCmd(nil)
	if err := cmd.ParseFlags([]string{
		"--set", "button_text=Got it",
		"--set", "instructions=Read it",
		"--unset", "confirmed_text",
	}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	updates, _ := cmd.Flags().GetStringToString("set")
	if updates["button_text"] != "Got it" || updates["instructions"] != "Read it" {
		t.Fatalf("set = %v, want button_text and instructions", updates)
	}
	unset, _ := cmd.Flags().GetStringSlice("unset")
	if len(unset) != 1 || unset[0] != "confirmed_text" {
		t.Fatalf("unset = %v, want [confirmed_text]", unset)
	}
}

func TestLoadSeedFile(t *testing.T) {
	t.Parallel()

	seed, err := loadSeedFile(writeSeedFile(t))
	if err != nil {
		t.Fatalf("loadSeedFile() error = %v", err)
	}
	if len(seed.Users) != 2 || len(seed.Items) != 1 {
		t.Fatalf("seed = %+v, want 2 users and 1 item", seed)
	}
	if seed.Users[0].DisplayName != "Alice" || seed.Users[1].Role != "editor" {
		t.Fatalf("users = %+v", seed.Users)
	}
	item := seed.Items[0]
	if item.Type != "post" {
		t.Fatalf("item type = %q, want post default", item.Type)
	}
	if !item.Enabled || len(item.ConfirmedBy) != 2 {
		t.Fatalf("item = %+v, want enabled with two confirmations", item)
	}
}

func TestLoadSeedFileRejectsBadTOML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("[[users]\nid = "), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	if _, err := loadSeedFile(path); err == nil {
		t.Fatal("loadSeedFile() error = nil, want decode error")
	}
}

func TestSeedThenReport(t *testing.T) {
	svc := setupService(t)

	out := runCmd(t, newSeedCmd(svc), "--file", writeSeedFile(t))
	if !strings.Contains(out, "seeded users=2 items=1 confirmations=1") {
		t.Fatalf("seed output = %q", out)
	}

	out = runCmd(t, newConfirmationsListCmd(svc), "--item", "42")
	for _, want := range []string{"item 42 enabled=true", "alice", "confirmed", "bob", "unconfirmed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("list output missing %q:\n%s", want, out)
		}
	}

	out = runCmd(t, newItemShowCmd(svc), "--id", "42")
	for _, want := range []string{"Handbook", "/items/42", "confirmations"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q:\n%s", want, out)
		}
	}
}

func TestItemCommands(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	out := runCmd(t, newItemCreateCmd(svc), "--id", "5", "--title", "Policy", "--type", "Page")
	if !strings.Contains(out, "item created: id=5 type=page enabled=false") {
		t.Fatalf("create output = %q", out)
	}

	runCmd(t, newItemToggleCmd(svc, true), "--id", "5")
	enabled, err := svc.IsEnabled(ctx, 5)
	if err != nil {
		t.Fatalf("IsEnabled() error = %v", err)
	}
	if !enabled {
		t.Fatal("IsEnabled() = false after enable")
	}

	out = runCmd(t, newItemListCmd(svc), "--type", "page")
	if !strings.Contains(out, "Policy") || !strings.Contains(out, "true") {
		t.Fatalf("list output = %q", out)
	}

	runCmd(t, newItemToggleCmd(svc, false), "--id", "5")
	enabled, err = svc.IsEnabled(ctx, 5)
	if err != nil {
		t.Fatalf("IsEnabled() error = %v", err)
	}
	if enabled {
		t.Fatal("IsEnabled() = true after disable")
	}

	out = runCmd(t, newItemListCmd(svc), "--type", "post")
	if !strings.Contains(out, "no items") {
		t.Fatalf("list output = %q, want no items", out)
	}
}

func TestItemToggleUnknownItem(t *testing.T) {
	svc := setupService(t)

	cmd := newItemToggleCmd(svc, true)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--id", "404"})
	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Fatal("enable of unknown item error = nil")
	}
}

func TestConfirmationCommands(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	runCmd(t, newItemCreateCmd(svc), "--id", "9", "--title", "Memo")

	confirm := func() string {
		return runCmd(t, newConfirmationsMutateCmd(svc, domain.ActionConfirm), "--item", "9", "--user", "3")
	}
	if out := confirm(); !strings.Contains(out, "confirm: item=9 user=3 changed=true") {
		t.Fatalf("confirm output = %q", out)
	}
	if out := confirm(); !strings.Contains(out, "changed=false") {
		t.Fatalf("second confirm output = %q", out)
	}

	out := runCmd(t, newConfirmationsMutateCmd(svc, domain.ActionUnconfirm), "--item", "9", "--user", "3")
	if !strings.Contains(out, "unconfirm: item=9 user=3 changed=true") {
		t.Fatalf("unconfirm output = %q", out)
	}

	confirm()
	runCmd(t, newConfirmationsResetCmd(svc), "--item", "9")
	ids, err := svc.GetConfirmedUsers(ctx, 9)
	if err != nil {
		t.Fatalf("GetConfirmedUsers() error = %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("GetConfirmedUsers() = %v after reset, want empty", ids)
	}
}

func TestSettingsCommands(t *testing.T) {
	svc := setupService(t)

	runCmd(t, newSettingsSetCmd(svc), "--set", "button_text=<b>Got it</b>", "--set", "colour=blue")
	runCmd(t, newSettingsSetCmd(svc), "--set", "instructions=Read it all")

	out := runCmd(t, newSettingsShowCmd(svc), "--raw")
	for _, want := range []string{"button_text: Got it", "instructions: Read it all", `confirmed_text: ""`} {
		if !strings.Contains(out, want) {
			t.Fatalf("raw settings missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "colour") {
		t.Fatalf("raw settings kept unknown key:\n%s", out)
	}

	runCmd(t, newSettingsSetCmd(svc), "--unset", "button_text")
	out = runCmd(t, newSettingsShowCmd(svc), "--type", "page")
	if !strings.Contains(out, "I confirm that I have read this page.") {
		t.Fatalf("effective settings did not fall back:\n%s", out)
	}
	if !strings.Contains(out, "instructions: Read it all") {
		t.Fatalf("effective settings lost stored value:\n%s", out)
	}
}

func TestMergeSettings(t *testing.T) {
	t.Parallel()

	got := mergeSettings(
		map[string]string{"button_text": "Old", "instructions": "", "confirmed_text": "Seen"},
		map[string]string{"button_text": "New"},
		[]string{"confirmed_text"},
	)
	if got["button_text"] != "New" {
		t.Fatalf("button_text = %q, want New", got["button_text"])
	}
	if _, ok := got["instructions"]; ok {
		t.Fatal("empty stored value should not be carried")
	}
	if v, ok := got["confirmed_text"]; !ok || v != "" {
		t.Fatalf("confirmed_text = %q, %t, want blank entry", v, ok)
	}
}
