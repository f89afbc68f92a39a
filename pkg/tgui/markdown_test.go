package tgui

import "testing"

func TestEscMD(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"under_score", `under\_score`},
		{"dot.dash-bang!", `dot\.dash\-bang\!`},
		{"a*b[c](d)", `a\*b\[c\]\(d\)`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := EscMD(tt.in); got != tt.want {
			t.Errorf("EscMD(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMDLink(t *testing.T) {
	t.Parallel()

	got := MDLink("ann_x", "https://example.com/users/ann_x")
	want := `[ann\_x](https://example.com/users/ann_x)`
	if got != want {
		t.Fatalf("MDLink = %q, want %q", got, want)
	}
}

func TestParseFollowCallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"sub_ann", "ann", true},
		{"\fsub_ann", "ann", true},
		{" sub_ann ", "ann", true},
		{"sub_", "", false},
		{"other_ann", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseFollowCallback(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseFollowCallback(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}

	if data := FollowCallbackData("ann"); data != "sub_ann" {
		t.Fatalf("FollowCallbackData = %q", data)
	}
}

func TestMenus(t *testing.T) {
	t.Parallel()

	if m := ModeMenu(); len(m.ReplyKeyboard) != 2 {
		t.Fatalf("ModeMenu rows = %d, want 2", len(m.ReplyKeyboard))
	}
	if m := StopMenu(false); len(m.ReplyKeyboard) != 1 || len(m.ReplyKeyboard[0]) != 1 {
		t.Fatal("StopMenu(false) should have a single stop button")
	}
	if m := StopMenu(true); len(m.ReplyKeyboard[0]) != 2 {
		t.Fatal("StopMenu(true) should add the manage button")
	}
	m := ManageMenu([]string{"ann", "bea"})
	if len(m.ReplyKeyboard) != 3 {
		t.Fatalf("ManageMenu rows = %d, want 2 creators + back", len(m.ReplyKeyboard))
	}
	if got := m.ReplyKeyboard[0][0].Text; got != UnfollowPrefix+"ann" {
		t.Fatalf("first row = %q", got)
	}
}

func TestFollowMarkup(t *testing.T) {
	t.Parallel()

	m := FollowMarkup("ann", false)
	if len(m.InlineKeyboard) != 1 || len(m.InlineKeyboard[0]) != 1 {
		t.Fatal("want one inline button")
	}
	btn := m.InlineKeyboard[0][0]
	if btn.Data != "sub_ann" {
		t.Fatalf("callback data = %q, want sub_ann", btn.Data)
	}
	if btn.Text != "❤️ Follow" {
		t.Fatalf("label = %q", btn.Text)
	}

	if got := FollowMarkup("ann", true).InlineKeyboard[0][0].Text; got != "💔 Unfollow" {
		t.Fatalf("label = %q", got)
	}
}
