package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/jorabeknazarmatov/test-platform/internal/model"
	"github.com/jorabeknazarmatov/test-platform/internal/session"
	"github.com/jorabeknazarmatov/test-platform/internal/sessionapi"
)

// errQuit ends the client without an error message.
var errQuit = errors.New("quit")

type app struct {
	backend sessionapi.Backend
	ctrl    *session.Controller
	in      *bufio.Scanner

	outMu sync.Mutex
	out   io.Writer

	// readOTP reads the code without echo. nil falls back to a plain line.
	readOTP func() (string, error)
}

func newApp(backend sessionapi.Backend, in io.Reader, out io.Writer) *app {
	return &app{
		backend: backend,
		in:      bufio.NewScanner(in),
		out:     out,
	}
}

// printf is safe to call from the expiry watcher while the main loop prints.
func (a *app) printf(format string, args ...interface{}) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) readLine(prompt string) (string, error) {
	a.printf("%s", prompt)
	if !a.in.Scan() {
		if err := a.in.Err(); err != nil {
			return "", err
		}
		return "", errQuit
	}
	return strings.TrimSpace(a.in.Text()), nil
}

func (a *app) run(ctx context.Context) error {
	a.printf("=== Onlayn test ===\n\n")

	a.chooseStudent(ctx)

	sessionID, err := a.login(ctx)
	if err != nil {
		return err
	}

	a.printf("Test yuklanmoqda...\n")
	if err := a.ctrl.StartSession(ctx, sessionID); err != nil {
		a.printf("Testni boshlab bo'lmadi: %s\n", reasonText(err))
		return err
	}

	return a.takeTest(ctx)
}

// chooseStudent walks the group and student lists. The choice is only shown
// back to the student; the session id is what binds the attempt.
func (a *app) chooseStudent(ctx context.Context) {
	groups, err := a.backend.ListGroups(ctx)
	if err != nil || len(groups) == 0 {
		return
	}

	a.printf("Guruhni tanlang:\n")
	for i, g := range groups {
		a.printf("  %d) %s\n", i+1, g.Name)
	}
	gi, ok := a.pick(len(groups))
	if !ok {
		return
	}

	students, err := a.backend.ListStudents(ctx, groups[gi].ID)
	if err != nil || len(students) == 0 {
		return
	}
	a.printf("O'quvchini tanlang:\n")
	for i, s := range students {
		a.printf("  %d) %s\n", i+1, s.FullName)
	}
	si, ok := a.pick(len(students))
	if !ok {
		return
	}
	a.printf("Xush kelibsiz, %s!\n\n", students[si].FullName)
}

// pick reads a 1-based choice; an empty line skips.
func (a *app) pick(n int) (int, bool) {
	for {
		line, err := a.readLine("> ")
		if err != nil || line == "" {
			return 0, false
		}
		i, err := strconv.Atoi(line)
		if err == nil && i >= 1 && i <= n {
			return i - 1, true
		}
		a.printf("1 dan %d gacha raqam kiriting.\n", n)
	}
}

// login asks for the session id and OTP until the server accepts them.
func (a *app) login(ctx context.Context) (int, error) {
	a.printf("O'qituvchidan Sessiya ID va OTP kodni oling.\n")
	for {
		line, err := a.readLine("Sessiya ID: ")
		if err != nil {
			return 0, err
		}
		sessionID, err := strconv.Atoi(line)
		if err != nil || sessionID <= 0 {
			a.printf("Sessiya ID musbat son bo'lishi kerak.\n")
			continue
		}

		otp, err := a.otp()
		if err != nil {
			return 0, err
		}
		if otp == "" {
			a.printf("Sessiya ID va OTP ni kiriting.\n")
			continue
		}

		verification, err := a.backend.VerifyOTP(ctx, sessionID, otp)
		if err != nil {
			a.printf("%s\n", reasonText(err))
			continue
		}
		return verification.SessionID, nil
	}
}

func (a *app) otp() (string, error) {
	if a.readOTP == nil {
		return a.readLine("OTP kod: ")
	}
	a.printf("OTP kod: ")
	otp, err := a.readOTP()
	return strings.TrimSpace(otp), err
}

func (a *app) takeTest(ctx context.Context) error {
	updates, unsubscribe := a.ctrl.Subscribe()
	defer unsubscribe()
	go a.watchExpiry(updates)

	a.printf("%s\n", helpText)
	for {
		snap := a.ctrl.Snapshot()
		if snap.State == session.StateFinished {
			return nil
		}
		a.printf("\n%s", renderQuestion(snap))

		line, err := a.readLine("> ")
		if err != nil {
			a.ctrl.Reset()
			return err
		}

		done, err := a.execute(ctx, parseCommand(line))
		if done || err != nil {
			return err
		}
	}
}

// execute runs one command. done reports that the test session is over.
func (a *app) execute(ctx context.Context, cmd command) (bool, error) {
	switch cmd.name {
	case "":
	case "n":
		a.ctrl.Next()
	case "p":
		a.ctrl.Previous()
	case "g":
		n, err := strconv.Atoi(cmd.arg)
		if err != nil {
			a.printf("Savol raqamini kiriting, masalan: g 3\n")
			return false, nil
		}
		a.ctrl.GoTo(n - 1)
	case "a":
		q := a.ctrl.Snapshot().Current()
		if q == nil {
			return false, nil
		}
		value, err := answerValue(*q, cmd.arg)
		if err != nil {
			a.printf("%s\n", err)
			return false, nil
		}
		if err := a.ctrl.SelectAnswer(q.ID, value); err != nil {
			a.printf("%s\n", reasonText(err))
		}
	case "f":
		res, err := a.ctrl.Finish(ctx)
		switch {
		case err == nil:
			a.printf("\nTest yakunlandi.\n%s\n", renderResult(res))
			return true, nil
		case errors.Is(err, session.ErrFinishInProgress), errors.Is(err, session.ErrAlreadyFinished):
			// The countdown got there first; the watcher prints the result.
			return false, nil
		default:
			a.printf("Testni yakunlab bo'lmadi: %s. Qayta urinib ko'ring.\n", reasonText(err))
		}
	case "q":
		a.ctrl.Reset()
		a.printf("Test yakunlanmadi.\n")
		return true, errQuit
	case "h", "?":
		a.printf("%s\n", helpText)
	default:
		a.printf("Noma'lum buyruq %q. Yordam: h\n", cmd.name)
	}
	return false, nil
}

// watchExpiry reports what the countdown does while the main loop is waiting
// for input: the result of the automatic finish, or why it failed. After a
// failure the student retries with f, and that path prints the result.
func (a *app) watchExpiry(updates <-chan session.Snapshot) {
	var reported string
	for snap := range updates {
		switch {
		case snap.State == session.StateFinished && snap.Expired:
			if reported == "" {
				a.printf("\n\nVaqt tugadi! Test avtomatik yakunlandi.\n%s\nDavom etish uchun Enter bosing.\n", renderResult(snap.Result))
			}
			return
		case snap.State == session.StateActive && snap.Expired && snap.LastError != "" && snap.LastError != reported:
			reported = snap.LastError
			a.printf("\n\nVaqt tugadi, lekin testni yakunlab bo'lmadi: %s\nQayta urinish uchun f ni kiriting.\n", snap.LastError)
		}
	}
}

// reasonText prefers the server-provided reason.
func reasonText(err error) string {
	var (
		loadErr   *session.SessionLoadError
		finishErr *session.FinishError
	)
	switch {
	case errors.As(err, &loadErr):
		return loadErr.Reason
	case errors.As(err, &finishErr):
		return finishErr.Reason
	case errors.Is(err, sessionapi.ErrOTPRejected):
		return "OTP noto'g'ri yoki muddati o'tgan"
	case errors.Is(err, sessionapi.ErrUnavailable):
		return "Serverga ulanib bo'lmadi"
	case errors.Is(err, session.ErrNotActive):
		return "Test faol emas"
	case errors.Is(err, session.ErrTimeElapsed):
		return "Vaqt tugadi, javobni o'zgartirib bo'lmaydi. Yakunlash uchun: f"
	}
	if reason := sessionapi.Reason(err); reason != "" {
		return reason
	}
	return err.Error()
}

type command struct {
	name string
	arg  string
}

func parseCommand(line string) command {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}
	}
	cmd := command{name: strings.ToLower(fields[0])}
	if len(fields) > 1 {
		cmd.arg = strings.Join(fields[1:], " ")
	}
	return cmd
}

// answerValue maps "b", "B" or "2" to the option letter "B".
func answerValue(q model.Question, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", errors.New("javobni kiriting, masalan: a B")
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(q.Options) {
			return "", fmt.Errorf("1 dan %d gacha variant tanlang", len(q.Options))
		}
		return model.OptionLetter(n - 1), nil
	}
	letter := strings.ToUpper(arg)
	for i := range q.Options {
		if model.OptionLetter(i) == letter {
			return letter, nil
		}
	}
	return "", fmt.Errorf("%q varianti yo'q", arg)
}
