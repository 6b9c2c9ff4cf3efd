package tui

import (
	"strings"
	"testing"

	"github.com/braindrive/docchat/internal/tui/testfixtures"
)

func TestToast_Initial(t *testing.T) {
	toast := NewToast()
	if toast.IsVisible() {
		t.Error("new toast should not be visible")
	}
	if toast.View(80) != "" {
		t.Error("hidden toast should render nothing")
	}
}

func TestToast_Show(t *testing.T) {
	toast := NewToast()
	cmd := toast.Show("Generation stopped")

	if cmd == nil {
		t.Fatal("Show should return a dismiss command")
	}
	if !toast.IsVisible() {
		t.Error("toast should be visible after Show")
	}
	if toast.Message() != "Generation stopped" {
		t.Errorf("Message() = %q", toast.Message())
	}
	if got := testfixtures.Plain(toast.View(80)); !strings.Contains(got, "Generation stopped") {
		t.Errorf("View() = %q, want message", got)
	}
}

func TestToast_ShowToastMsg(t *testing.T) {
	toast := NewToast()
	if cmd := toast.Update(ShowToastMsg{Text: "boom", Error: true}); cmd == nil {
		t.Fatal("ShowToastMsg should schedule a dismissal")
	}
	if !toast.IsVisible() || toast.Message() != "boom" {
		t.Errorf("toast = %q visible=%v", toast.Message(), toast.IsVisible())
	}
}

func TestToast_Dismiss(t *testing.T) {
	toast := NewToast()
	toast.Show("one")

	toast.Update(ToastDismissMsg{Seq: 1})

	if toast.IsVisible() {
		t.Error("toast should be hidden after dismissal")
	}
	if toast.Message() != "" {
		t.Errorf("Message() = %q, want empty", toast.Message())
	}
}

func TestToast_StaleDismissKeepsNewerToast(t *testing.T) {
	toast := NewToast()
	toast.Show("one")
	toast.Show("two")

	toast.Update(ToastDismissMsg{Seq: 1})

	if !toast.IsVisible() || toast.Message() != "two" {
		t.Errorf("newer toast was dismissed by an old timer: %q", toast.Message())
	}

	toast.Update(ToastDismissMsg{Seq: 2})
	if toast.IsVisible() {
		t.Error("toast should be hidden by its own dismissal")
	}
}

func TestToast_ViewWraps(t *testing.T) {
	toast := NewToast()
	toast.Show(strings.Repeat("long ", 20))

	for _, line := range strings.Split(testfixtures.Plain(toast.View(30)), "\n") {
		if len([]rune(line)) > 28 {
			t.Errorf("line %q exceeds width", line)
		}
	}
}
