package main

import (
	"fmt"
	"strings"

	"github.com/jorabeknazarmatov/test-platform/internal/model"
	"github.com/jorabeknazarmatov/test-platform/internal/session"
)

const helpText = `Buyruqlar:
  a <javob>  javob tanlash (a B yoki a 2)
  n          keyingi savol
  p          oldingi savol
  g <raqam>  savolga o'tish
  f          testni yakunlash
  q          chiqish
  h          yordam`

// renderQuestion draws the header, any pending failure and the question under
// the cursor.
func renderQuestion(snap session.Snapshot) string {
	q := snap.Current()
	if q == nil {
		return "Savollar yo'q.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Savol %d / %d   Javob berilgan: %d   Qolgan vaqt: %s\n",
		snap.CurrentIndex+1, len(snap.Questions), len(snap.Answers), formatRemaining(snap.TimeRemaining))
	if snap.LastError != "" {
		fmt.Fprintf(&b, "! Xatolik: %s\n", snap.LastError)
	}
	if snap.Expired && snap.State == session.StateActive {
		fmt.Fprintf(&b, "! Vaqt tugadi. Testni yakunlash uchun: f\n")
	}
	fmt.Fprintf(&b, "%s\n", q.Text)

	selected := snap.Answers[q.ID]
	for i, opt := range q.Options {
		letter := model.OptionLetter(i)
		mark := " "
		if letter == selected {
			mark = "*"
		}
		fmt.Fprintf(&b, " %s %s) %s\n", mark, letter, opt.Text)
	}
	return b.String()
}

func renderResult(res *model.Result) string {
	if res == nil {
		return "Natija mavjud emas."
	}
	text := res.ResultText
	if text == "" {
		text = fmt.Sprintf("%d / %d (%.1f%%)", res.CorrectCount, res.TotalCount, res.Percentage)
	}
	return "Natija: " + text
}

// formatRemaining renders seconds as MM:SS, or H:MM:SS past an hour.
func formatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, seconds/60%60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
