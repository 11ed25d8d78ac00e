package bot

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/bot/access"
	"github.com/m3rciful/relaybot/bot/journal"
	"github.com/m3rciful/relaybot/bot/session"
	"github.com/m3rciful/relaybot/bot/storage"
	coreconfig "github.com/m3rciful/relaybot/core/config"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"
	"github.com/m3rciful/relaybot/core/telegram/middleware"
	"github.com/m3rciful/relaybot/core/telegram/sender"
)

// fakeAPI overrides only the download path of the bot API.
type fakeAPI struct {
	tele.API
	download func(file *tele.File, dst string) error
}

func (f *fakeAPI) Download(file *tele.File, dst string) error {
	return f.download(file, dst)
}

// fakeContext captures outbound replies and serves canned update data.
type fakeContext struct {
	tele.Context
	sender *tele.User
	text   string
	msg    *tele.Message
	api    tele.API
	store  map[string]interface{}
	sent   []string
}

func (f *fakeContext) Sender() *tele.User { return f.sender }

func (f *fakeContext) Chat() *tele.Chat {
	if f.msg != nil {
		return f.msg.Chat
	}
	return nil
}

func (f *fakeContext) Update() tele.Update { return tele.Update{ID: 1, Message: f.msg} }

func (f *fakeContext) Text() string { return f.text }

func (f *fakeContext) Message() *tele.Message { return f.msg }

func (f *fakeContext) Bot() tele.API { return f.api }

func (f *fakeContext) Get(key string) interface{} { return f.store[key] }

func (f *fakeContext) Set(key string, val interface{}) {
	if f.store == nil {
		f.store = make(map[string]interface{})
	}
	f.store[key] = val
}

func (f *fakeContext) Send(what interface{}, _ ...interface{}) error {
	if s, ok := what.(string); ok {
		f.sent = append(f.sent, s)
	}
	return nil
}

// recordingBackend counts uploads and answers with a fixed outcome.
type recordingBackend struct {
	label   string
	ok      bool
	uploads []string
}

func (b *recordingBackend) Label() string { return b.label }

func (b *recordingBackend) Upload(_ context.Context, path string) bool {
	b.uploads = append(b.uploads, path)
	return b.ok
}

func newTestApp() *App {
	return &App{
		cfg: &coreconfig.Config{},
		factory: storage.NewFactory(coreconfig.StorageConfig{
			S3: coreconfig.S3Config{
				Endpoint:  "minio.test:9000",
				Bucket:    "relay",
				AccessKey: "key",
				SecretKey: "secret",
			},
		}),
		sessions: session.NewManager(),
		allow:    access.Parse(""),
		journal:  journal.New(nil),
	}
}

func testUser(id int64) *tele.User {
	return &tele.User{ID: id, FirstName: "Alice", Username: "alice"}
}

func commandContext(id int64, text string) *fakeContext {
	u := testUser(id)
	return &fakeContext{
		sender: u,
		text:   text,
		msg:    &tele.Message{Sender: u, Chat: &tele.Chat{ID: id}, Text: text},
	}
}

func documentContext(id int64, fileName string, api tele.API) *fakeContext {
	u := testUser(id)
	return &fakeContext{
		sender: u,
		api:    api,
		msg: &tele.Message{
			Sender: u,
			Chat:   &tele.Chat{ID: id},
			Document: &tele.Document{
				File:     tele.File{FileID: "doc-1"},
				FileName: fileName,
			},
		},
	}
}

func writingAPI(t *testing.T) *fakeAPI {
	t.Helper()
	return &fakeAPI{download: func(_ *tele.File, dst string) error {
		return os.WriteFile(dst, []byte("payload"), 0o600)
	}}
}

func TestStartOpensAwaitingSession(t *testing.T) {
	a := newTestApp()
	c := commandContext(7, "/start")

	if err := a.handleStart(c); err != nil {
		t.Fatalf("handleStart: %v", err)
	}

	if got := a.sessions.State(7); got != session.StateAwaitingBackend {
		t.Fatalf("state = %q, expected %q", got, session.StateAwaitingBackend)
	}
	if len(c.sent) != 1 || c.sent[0] != msgChooseBackend {
		t.Fatalf("sent = %v, expected menu prompt", c.sent)
	}
}

func TestUnauthorizedStartIsRefused(t *testing.T) {
	a := newTestApp()
	a.allow = access.Parse("10")

	gated := middleware.Allowlist(middleware.AccessOptions{
		Approver: a.allow,
		OnReject: a.rejectUnauthorized,
	})(a.handleStart)

	c := commandContext(7, "/start")
	if err := gated(c); err != nil {
		t.Fatalf("gated handler: %v", err)
	}

	if a.sessions.Active(7) {
		t.Fatal("unauthorized user must stay without a session")
	}
	want := fmt.Sprintf(msgNotAuthorizedFmt, "Alice (id: 7)")
	if len(c.sent) != 1 || c.sent[0] != want {
		t.Fatalf("sent = %v, expected %q", c.sent, want)
	}
}

func TestUnauthorizedNonStartIsDroppedSilently(t *testing.T) {
	a := newTestApp()
	a.allow = access.Parse("10")

	gated := middleware.Allowlist(middleware.AccessOptions{
		Approver: a.allow,
		OnReject: a.rejectUnauthorized,
	})(a.handleBackendChoice)

	c := commandContext(7, "S3")
	if err := gated(c); err != nil {
		t.Fatalf("gated handler: %v", err)
	}
	if len(c.sent) != 0 {
		t.Fatalf("sent = %v, expected silence", c.sent)
	}
}

func TestBackendChoiceBindsS3(t *testing.T) {
	a := newTestApp()
	a.sessions.Begin(7)

	c := commandContext(7, "S3")
	if err := a.handleBackendChoice(c); err != nil {
		t.Fatalf("handleBackendChoice: %v", err)
	}

	s, ok := a.sessions.Get(7)
	if !ok || s.State != session.StateReceivingFiles {
		t.Fatalf("session not receiving: %+v", s)
	}
	if s.Backend == nil || s.Backend.Label() != "S3" {
		t.Fatal("S3 backend not bound")
	}
	want := fmt.Sprintf(msgReadyFmt, "S3")
	if len(c.sent) != 1 || c.sent[0] != want {
		t.Fatalf("sent = %v, expected ready message", c.sent)
	}
}

func TestBackendChoiceIgnoresUnknownLabel(t *testing.T) {
	a := newTestApp()
	a.sessions.Begin(7)

	c := commandContext(7, "Dropbox")
	if err := a.handleBackendChoice(c); err != nil {
		t.Fatalf("handleBackendChoice: %v", err)
	}

	if got := a.sessions.State(7); got != session.StateAwaitingBackend {
		t.Fatalf("state = %q, expected to stay awaiting", got)
	}
	if len(c.sent) != 0 {
		t.Fatalf("sent = %v, expected silence", c.sent)
	}
}

func TestBackendChoiceIgnoredWithoutSession(t *testing.T) {
	a := newTestApp()
	c := commandContext(7, "S3")
	if err := a.handleBackendChoice(c); err != nil {
		t.Fatalf("handleBackendChoice: %v", err)
	}
	if a.sessions.Active(7) {
		t.Fatal("no session must be created from stray text")
	}
	if len(c.sent) != 0 {
		t.Fatalf("sent = %v, expected silence", c.sent)
	}
}

func TestBackendChoiceBuildFaultApologizes(t *testing.T) {
	a := newTestApp()
	a.factory = storage.NewFactory(coreconfig.StorageConfig{})
	a.sessions.Begin(7)

	c := commandContext(7, "S3")
	if err := a.handleBackendChoice(c); err != nil {
		t.Fatalf("handleBackendChoice: %v", err)
	}

	if len(c.sent) != 1 || c.sent[0] != msgApology {
		t.Fatalf("sent = %v, expected apology", c.sent)
	}
	if got := a.sessions.State(7); got != session.StateAwaitingBackend {
		t.Fatalf("state = %q, session must survive the fault", got)
	}
}

func bindRecording(t *testing.T, a *App, userID int64, ok bool) *recordingBackend {
	t.Helper()
	a.sessions.Begin(userID)
	b := &recordingBackend{label: "S3", ok: ok}
	if !a.sessions.Bind(userID, b) {
		t.Fatal("bind failed")
	}
	return b
}

func TestDocumentRelayUploadsAndCleansUp(t *testing.T) {
	a := newTestApp()
	b := bindRecording(t, a, 7, true)

	c := documentContext(7, "report.pdf", writingAPI(t))
	if err := a.handleAttachment(c); err != nil {
		t.Fatalf("handleAttachment: %v", err)
	}

	if len(b.uploads) != 1 {
		t.Fatalf("uploads = %d, expected 1", len(b.uploads))
	}
	if !strings.HasSuffix(b.uploads[0], "report.pdf") {
		t.Fatalf("uploaded path %q does not carry the original name", b.uploads[0])
	}
	if _, err := os.Stat(b.uploads[0]); !os.IsNotExist(err) {
		t.Fatalf("temporary copy %q survived the relay", b.uploads[0])
	}

	want := []string{fmt.Sprintf(msgReceivedFmt, "report.pdf"), msgUploaded}
	if len(c.sent) != 2 || c.sent[0] != want[0] || c.sent[1] != want[1] {
		t.Fatalf("sent = %v, expected %v", c.sent, want)
	}
	if got := a.sessions.State(7); got != session.StateReceivingFiles {
		t.Fatalf("state = %q, relay must self-loop", got)
	}
}

func TestUploadFailureSendsNoSuccessReply(t *testing.T) {
	a := newTestApp()
	b := bindRecording(t, a, 7, false)

	c := documentContext(7, "report.pdf", writingAPI(t))
	if err := a.handleAttachment(c); err != nil {
		t.Fatalf("handleAttachment: %v", err)
	}

	if len(b.uploads) != 1 {
		t.Fatalf("uploads = %d, expected 1", len(b.uploads))
	}
	if _, err := os.Stat(b.uploads[0]); !os.IsNotExist(err) {
		t.Fatal("temporary copy must be removed on failure too")
	}
	if len(c.sent) != 1 || c.sent[0] != fmt.Sprintf(msgReceivedFmt, "report.pdf") {
		t.Fatalf("sent = %v, expected only the received notice", c.sent)
	}
}

func TestReplaySameDocumentUploadsTwice(t *testing.T) {
	a := newTestApp()
	b := bindRecording(t, a, 7, true)

	for i := 0; i < 2; i++ {
		c := documentContext(7, "report.pdf", writingAPI(t))
		if err := a.handleAttachment(c); err != nil {
			t.Fatalf("handleAttachment #%d: %v", i+1, err)
		}
		if len(c.sent) != 2 {
			t.Fatalf("attempt #%d sent = %v", i+1, c.sent)
		}
	}
	if len(b.uploads) != 2 {
		t.Fatalf("uploads = %d, expected independent attempts", len(b.uploads))
	}
}

func TestVideoRelayUsesPlaceholderName(t *testing.T) {
	a := newTestApp()
	b := bindRecording(t, a, 7, true)

	u := testUser(7)
	c := &fakeContext{
		sender: u,
		api:    writingAPI(t),
		msg: &tele.Message{
			Sender: u,
			Chat:   &tele.Chat{ID: 7},
			Video:  &tele.Video{File: tele.File{FileID: "vid-1"}},
		},
	}
	if err := a.handleAttachment(c); err != nil {
		t.Fatalf("handleAttachment: %v", err)
	}

	if len(b.uploads) != 1 {
		t.Fatalf("uploads = %d, expected 1", len(b.uploads))
	}
	if len(c.sent) == 0 || c.sent[0] != fmt.Sprintf(msgReceivedFmt, "Video file.") {
		t.Fatalf("sent = %v, expected the video placeholder name", c.sent)
	}
}

func TestInlinePhotoIsRejectedWithoutUpload(t *testing.T) {
	a := newTestApp()
	b := bindRecording(t, a, 7, true)

	u := testUser(7)
	c := &fakeContext{
		sender: u,
		msg: &tele.Message{
			Sender: u,
			Chat:   &tele.Chat{ID: 7},
			Photo:  &tele.Photo{File: tele.File{FileID: "ph-1"}},
		},
	}
	if err := a.handleAttachment(c); err != nil {
		t.Fatalf("handleAttachment: %v", err)
	}

	if len(b.uploads) != 0 {
		t.Fatal("inline photo must never reach the backend")
	}
	if len(c.sent) != 1 || c.sent[0] != msgPhotoRejected {
		t.Fatalf("sent = %v, expected the compression warning", c.sent)
	}
	if got := a.sessions.State(7); got != session.StateReceivingFiles {
		t.Fatalf("state = %q, session must continue", got)
	}
}

func TestBareMessageIsUnsupported(t *testing.T) {
	a := newTestApp()
	b := bindRecording(t, a, 7, true)

	u := testUser(7)
	c := &fakeContext{
		sender: u,
		msg:    &tele.Message{Sender: u, Chat: &tele.Chat{ID: 7}},
	}
	if err := a.handleAttachment(c); err != nil {
		t.Fatalf("handleAttachment: %v", err)
	}

	if len(b.uploads) != 0 {
		t.Fatal("unsupported message must not upload")
	}
	if len(c.sent) != 1 || c.sent[0] != msgUnsupported {
		t.Fatalf("sent = %v, expected unsupported notice", c.sent)
	}
}

func TestAttachmentWithoutSessionIsIgnored(t *testing.T) {
	a := newTestApp()
	c := documentContext(7, "report.pdf", writingAPI(t))
	if err := a.handleAttachment(c); err != nil {
		t.Fatalf("handleAttachment: %v", err)
	}
	if len(c.sent) != 0 {
		t.Fatalf("sent = %v, expected silence", c.sent)
	}
}

func TestDownloadFailureApologizes(t *testing.T) {
	a := newTestApp()
	b := bindRecording(t, a, 7, true)

	api := &fakeAPI{download: func(*tele.File, string) error {
		return fmt.Errorf("telegram: file gone")
	}}
	c := documentContext(7, "report.pdf", api)
	if err := a.handleAttachment(c); err != nil {
		t.Fatalf("handleAttachment: %v", err)
	}

	if len(b.uploads) != 0 {
		t.Fatal("failed download must not be uploaded")
	}
	if len(c.sent) != 1 || c.sent[0] != msgApology {
		t.Fatalf("sent = %v, expected apology", c.sent)
	}
	if got := a.sessions.State(7); got != session.StateReceivingFiles {
		t.Fatalf("state = %q, session preserved after fault", got)
	}
}

func TestCancelEndsSession(t *testing.T) {
	a := newTestApp()
	bindRecording(t, a, 7, true)

	c := commandContext(7, "/cancel")
	if err := a.handleCancel(c); err != nil {
		t.Fatalf("handleCancel: %v", err)
	}
	if len(c.sent) != 1 || c.sent[0] != msgFinished {
		t.Fatalf("sent = %v, expected farewell", c.sent)
	}
	if a.sessions.Active(7) {
		t.Fatal("session survived /cancel")
	}

	// A later attachment finds no session and is ignored.
	after := documentContext(7, "report.pdf", writingAPI(t))
	if err := a.handleAttachment(after); err != nil {
		t.Fatalf("handleAttachment after cancel: %v", err)
	}
	if len(after.sent) != 0 {
		t.Fatalf("sent = %v, expected silence after cancel", after.sent)
	}
}

func TestDoubleStartReplacesBinding(t *testing.T) {
	a := newTestApp()
	b := bindRecording(t, a, 7, true)

	restart := commandContext(7, "/start")
	if err := a.handleStart(restart); err != nil {
		t.Fatalf("handleStart: %v", err)
	}

	s, ok := a.sessions.Get(7)
	if !ok || s.State != session.StateAwaitingBackend || s.Backend != nil {
		t.Fatalf("session = %+v, restart must clear the binding", s)
	}

	// The stale backend never sees the attachment sent mid-selection.
	c := documentContext(7, "report.pdf", writingAPI(t))
	if err := a.handleAttachment(c); err != nil {
		t.Fatalf("handleAttachment: %v", err)
	}
	if len(b.uploads) != 0 {
		t.Fatal("stale backend received an upload after restart")
	}
}

func TestRelayRepliesKeepOrderWithDispatcher(t *testing.T) {
	d := sender.NewDispatcher(sender.Options{Workers: 4})
	tghelpers.SetDispatcher(d)
	defer func() {
		tghelpers.SetDispatcher(nil)
		d.Close()
	}()

	a := newTestApp()
	bindRecording(t, a, 7, true)

	c := documentContext(7, "report.pdf", writingAPI(t))
	if err := a.handleAttachment(c); err != nil {
		t.Fatalf("handleAttachment: %v", err)
	}

	want := []string{fmt.Sprintf(msgReceivedFmt, "report.pdf"), msgUploaded}
	if len(c.sent) != 2 || c.sent[0] != want[0] || c.sent[1] != want[1] {
		t.Fatalf("sent = %v, expected %v in order", c.sent, want)
	}
}

func TestDotDotDocumentStaysInScratchDir(t *testing.T) {
	a := newTestApp()
	b := bindRecording(t, a, 7, true)

	c := documentContext(7, "..", writingAPI(t))
	if err := a.handleAttachment(c); err != nil {
		t.Fatalf("handleAttachment: %v", err)
	}

	if len(b.uploads) != 1 {
		t.Fatalf("uploads = %d, expected 1", len(b.uploads))
	}
	if !strings.HasSuffix(b.uploads[0], "attachment") {
		t.Fatalf("uploaded path %q escaped the fallback name", b.uploads[0])
	}
}

func TestRunOptionsRouteTextThroughFallback(t *testing.T) {
	a := newTestApp()
	opts, err := a.TelegramRunOptions()
	if err != nil {
		t.Fatalf("TelegramRunOptions: %v", err)
	}

	for _, r := range opts.Routes {
		if r.Endpoint == tele.OnText {
			t.Fatal("plain text must route through the registry fallback, not a direct route")
		}
	}

	fallback := opts.Registry.TextFallback()
	if fallback == nil {
		t.Fatal("text fallback not registered")
	}

	// The fallback drives backend selection.
	a.sessions.Begin(7)
	c := commandContext(7, "S3")
	if err := fallback(c); err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if got := a.sessions.State(7); got != session.StateReceivingFiles {
		t.Fatalf("state = %q, fallback did not bind the backend", got)
	}
}

func TestSafeFileName(t *testing.T) {
	cases := map[string]string{
		"report.pdf":        "report.pdf",
		"  report.pdf ":     "report.pdf",
		"../../etc/passwd":  "passwd",
		`C:\temp\notes.txt`: "notes.txt",
		"":                  "attachment",
		".":                 "attachment",
		"..":                "attachment",
		"../..":             "attachment",
	}
	for in, want := range cases {
		if got := safeFileName(in); got != want {
			t.Fatalf("safeFileName(%q) = %q, expected %q", in, got, want)
		}
	}
}
