package router

import (
	"context"
	"strings"
	"sync"
	"testing"

	"clipbot/internal/engine"
	kit "clipbot/internal/transport"
	logx "clipbot/pkg/logx"
	"clipbot/pkg/tgui"
)

type sentText struct {
	chatID int64
	text   string
	markup any
}

type fakeAdapter struct {
	mu       sync.Mutex
	texts    []sentText
	answers  []string
	edits    []kit.MessageRef
	lastEdit *kit.SendOptions
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var markup any
	if opt != nil {
		markup = opt.ReplyMarkupAdapter
	}
	f.texts = append(f.texts, sentText{chatID: to.ChatID, text: text, markup: markup})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.texts)}, nil
}

func (f *fakeAdapter) SendVideo(_ context.Context, to kit.ChatTarget, _ string, _ string, _ *kit.SendOptions) (kit.MessageRef, error) {
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (f *fakeAdapter) EditMarkup(_ context.Context, ref kit.MessageRef, opt *kit.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, ref)
	f.lastEdit = opt
	return nil
}

func (f *fakeAdapter) AnswerCallback(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeAdapter) lastText(t *testing.T) sentText {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		t.Fatal("no message sent")
	}
	return f.texts[len(f.texts)-1]
}

func newTestRouter(t *testing.T) (*Router, *fakeAdapter, *engine.StateStore, *engine.Follows) {
	t.Helper()
	ad := &fakeAdapter{}
	states := engine.NewStateStore(nil, logx.Logger{})
	follows := engine.NewFollows(nil, logx.Logger{})
	return New(ad, states, follows, logx.Logger{}), ad, states, follows
}

func msg(chatID int64, text string) kit.Update {
	return kit.Update{
		Kind:    kit.UpdateMessage,
		Message: &kit.Message{ChatID: chatID, FromID: chatID, Text: text},
	}
}

func TestStartClearsStateAndShowsMenu(t *testing.T) {
	t.Parallel()

	r, ad, states, _ := newTestRouter(t)
	ctx := context.Background()
	states.Set(ctx, 7, engine.State{Mode: engine.ModeTrending, Active: true})

	r.handle(ctx, msg(7, "/start"))

	if states.Active(7) {
		t.Fatal("/start must clear the subscriber state")
	}
	if got := ad.lastText(t); got.markup == nil {
		t.Fatalf("want menu keyboard, got %+v", got)
	}
}

func TestTrendingButtonActivatesMode(t *testing.T) {
	t.Parallel()

	r, _, states, _ := newTestRouter(t)
	ctx := context.Background()

	r.handle(ctx, msg(7, tgui.BtnTrending))

	st := states.Get(7)
	if st.Mode != engine.ModeTrending || !st.Active {
		t.Fatalf("state = %+v, want active trending", st)
	}
}

func TestForMeRefusedWithoutFollows(t *testing.T) {
	t.Parallel()

	r, ad, states, follows := newTestRouter(t)
	ctx := context.Background()

	r.handle(ctx, msg(7, tgui.BtnForMe))
	if states.Active(7) {
		t.Fatal("mode must not activate with an empty follow set")
	}
	if got := ad.lastText(t); !strings.Contains(got.text, "not following") {
		t.Fatalf("reply = %q, want refusal", got.text)
	}

	follows.Add(ctx, "ann")
	r.handle(ctx, msg(7, tgui.BtnForMe))
	st := states.Get(7)
	if st.Mode != engine.ModeFollows || !st.Active {
		t.Fatalf("state = %+v, want active follows", st)
	}
}

func TestByCreatorConsumesNextMessage(t *testing.T) {
	t.Parallel()

	r, _, states, _ := newTestRouter(t)
	ctx := context.Background()

	r.handle(ctx, msg(7, tgui.BtnByCreator))
	if states.Active(7) {
		t.Fatal("prompt must not activate a mode yet")
	}

	r.handle(ctx, msg(7, "https://www.redgifs.com/users/Ann"))
	st := states.Get(7)
	if st.Mode != engine.ModeCreator || !st.Active || st.Creator != "ann" {
		t.Fatalf("state = %+v, want creator ann", st)
	}

	// The handshake is one-shot: plain text afterwards is not an answer.
	r.handle(ctx, msg(7, "bob"))
	if got := states.Get(7); got.Creator != "ann" {
		t.Fatalf("creator = %q, want unchanged ann", got.Creator)
	}
}

func TestByCreatorRepromptsOnBadInput(t *testing.T) {
	t.Parallel()

	r, ad, states, _ := newTestRouter(t)
	ctx := context.Background()

	r.handle(ctx, msg(7, tgui.BtnByCreator))
	r.handle(ctx, msg(7, "https://"))
	if states.Active(7) {
		t.Fatal("bad input must not activate a mode")
	}
	if got := ad.lastText(t); !strings.Contains(got.text, "Try again") {
		t.Fatalf("reply = %q, want reprompt", got.text)
	}

	// Still pending: a valid answer works on the second attempt.
	r.handle(ctx, msg(7, "ann"))
	if st := states.Get(7); st.Creator != "ann" {
		t.Fatalf("state = %+v, want creator ann", st)
	}
}

func TestStopButtonDeactivates(t *testing.T) {
	t.Parallel()

	r, _, states, _ := newTestRouter(t)
	ctx := context.Background()

	r.handle(ctx, msg(7, tgui.BtnTrending))
	r.handle(ctx, msg(7, tgui.BtnStop))
	if states.Active(7) {
		t.Fatal("stop must deactivate the subscriber")
	}
}

func TestUnfollowButtonText(t *testing.T) {
	t.Parallel()

	r, _, _, follows := newTestRouter(t)
	ctx := context.Background()
	follows.Add(ctx, "ann")
	follows.Add(ctx, "bea")

	r.handle(ctx, msg(7, tgui.UnfollowPrefix+"ann"))
	if follows.Contains("ann") {
		t.Fatal("ann should be unfollowed")
	}
	if !follows.Contains("bea") {
		t.Fatal("bea should remain")
	}
}

func TestFollowCallbackTogglesAndEditsMarkup(t *testing.T) {
	t.Parallel()

	r, ad, _, follows := newTestRouter(t)
	ctx := context.Background()

	cb := kit.Update{
		Kind: kit.UpdateCallback,
		Callback: &kit.Callback{
			ID:        "cb1",
			ChatID:    7,
			MessageID: 42,
			Data:      "\f" + tgui.FollowCallbackData("ann"),
		},
	}

	r.handle(ctx, cb)
	if !follows.Contains("ann") {
		t.Fatal("callback must follow ann")
	}
	if len(ad.answers) != 1 || !strings.Contains(ad.answers[0], "Following") {
		t.Fatalf("answers = %v", ad.answers)
	}
	if len(ad.edits) != 1 || ad.edits[0].MessageID != 42 {
		t.Fatalf("edits = %v", ad.edits)
	}
	if ad.lastEdit == nil || ad.lastEdit.ReplyMarkupAdapter == nil {
		t.Fatal("edit must carry the refreshed button markup")
	}

	r.handle(ctx, cb)
	if follows.Contains("ann") {
		t.Fatal("second callback must unfollow ann")
	}
}

func TestParseCreatorInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"ann", "ann", true},
		{"  Ann  ", "ann", true},
		{"@Ann", "ann", true},
		{"https://www.redgifs.com/users/Ann", "ann", true},
		{"https://www.redgifs.com/users/Ann/", "ann", true},
		{"www.redgifs.com/users/ann", "ann", true},
		{"", "", false},
		{"   ", "", false},
		{"two words", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseCreatorInput(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseCreatorInput(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
