package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Makepad-fr/tada-sync/internal/auth"
	"github.com/Makepad-fr/tada-sync/internal/model"
	"github.com/Makepad-fr/tada-sync/internal/todo"
	"github.com/Makepad-fr/tada-sync/internal/tui"
	"github.com/Makepad-fr/tada-sync/internal/ui"
)

// Options tune output behavior from root flags.
type Options struct {
	Group bool // list grouped by pending/done

	// Open builds the configured store. Commands that touch todos call it
	// once; auth and help never do. Loader backends are loaded here, except
	// for ui which loads on start. Backends implementing io.Closer are
	// closed when the command ends.
	Open func(ctx context.Context) (todo.Backend, error)

	Timeout time.Duration // per command; 0 means 10s
	Logger  zerolog.Logger
	In      io.Reader // auth login reads the key from here; nil means stdin
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return 10 * time.Second
	}
	return o.Timeout
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(args []string, opt Options) int {
	if len(args) == 0 {
		PrintHelp()
		return 2
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp()
		return 0

	case "ls":
		if len(a) > 1 {
			ui.Fail("usage: todo ls [all|active|completed]")
			return 2
		}
		f := model.FilterAll
		if len(a) == 1 {
			var err error
			if f, err = model.ParseFilter(a[0]); err != nil {
				ui.Fail("ls: " + err.Error())
				return 2
			}
		}
		return withBackend(opt, func(ctx context.Context, b todo.Backend) int {
			return doList(b, f, opt)
		})

	case "add":
		if len(a) == 0 {
			ui.Fail("usage: todo add <text...>")
			return 2
		}
		text := strings.Join(a, " ")
		return withBackend(opt, func(ctx context.Context, b todo.Backend) int {
			return doAdd(ctx, b, text)
		})

	case "done", "rm":
		if len(a) != 1 {
			ui.Fail("usage: todo " + cmd + " <index>")
			return 2
		}
		n, err := strconv.Atoi(a[0])
		if err != nil {
			ui.Fail(cmd + ": not a number: " + a[0])
			return 2
		}
		return withBackend(opt, func(ctx context.Context, b todo.Backend) int {
			if cmd == "done" {
				return doToggle(ctx, b, n)
			}
			return doRemove(ctx, b, n)
		})

	case "edit":
		if len(a) < 2 {
			ui.Fail("usage: todo edit <index> <text...>")
			return 2
		}
		n, err := strconv.Atoi(a[0])
		if err != nil {
			ui.Fail("edit: not a number: " + a[0])
			return 2
		}
		text := strings.Join(a[1:], " ")
		return withBackend(opt, func(ctx context.Context, b todo.Backend) int {
			return doEdit(ctx, b, n, text)
		})

	case "ui":
		return doUI(opt)

	case "auth":
		if len(a) != 1 {
			ui.Fail("usage: todo auth <login|logout|status>")
			return 2
		}
		switch a[0] {
		case "login":
			return doAuthLogin(opt)
		case "logout":
			return doAuthLogout()
		case "status":
			return doAuthStatus()
		default:
			ui.Fail("usage: todo auth <login|logout|status>")
			return 2
		}
	}

	ui.Fail("unknown subcommand: " + cmd)
	fmt.Fprintln(ui.Err)
	PrintHelp()
	return 2
}

func PrintHelp() {
	fmt.Fprint(ui.Out, `todo - a tiny CLI

Usage:
  todo [flags] <subcommand> [args]

Subcommands:
  add <text...>          Add a new item (text can be multiple words)
  ls [filter]            List items; filter is all, active or completed
  done <index>           Toggle done for item at 1-based index
  edit <index> <text...> Replace the text of an item (local store only)
  rm <index>             Remove item at 1-based index
  ui                     Interactive list
  auth <login|logout|status>
                         Manage the table service access key

Flags:
  -backend local|remote  Where todos live (env TODO_BACKEND)
  -data <dir>            Local data directory (env TODO_DATA_DIR)
  -theme classic|neon|mono
  -group                 Group ls output by pending/done
  -log-level <level>     zerolog level for diagnostics on stderr

Examples:
  todo add "Buy milk"
  todo ls active
  todo done 2
  todo -backend remote ls
`)
}

// withBackend opens the store under the command timeout and runs fn.
func withBackend(opt Options, fn func(ctx context.Context, b todo.Backend) int) int {
	if opt.Open == nil {
		ui.Fail("no store configured")
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), opt.timeout())
	defer cancel()

	b, err := opt.Open(ctx)
	if err != nil {
		ui.Fail("open: " + err.Error())
		return 1
	}
	defer release(b, opt)

	if ld, ok := b.(todo.Loader); ok {
		if err := ld.Load(ctx); err != nil {
			ui.Fail("load: " + err.Error())
			return 1
		}
	}
	return fn(ctx, b)
}

func release(b todo.Backend, opt Options) {
	c, ok := b.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		opt.Logger.Warn().Err(err).Msg("Close store")
	}
}

// -------------- subcommand impls ----------------

func doList(b todo.Backend, f model.Filter, opt Options) int {
	all := b.Todos()
	d, p := model.Stats(all)
	t := ui.Current()
	header := fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		ui.C(t.Title, "Todos"),
		ui.C(t.Success, "✔"), d,
		ui.C(t.Pending, "•"), p,
		ui.C(t.Accent, "Total"), len(all),
	)

	names := make([]string, 0, 3)
	for _, x := range model.Filters() {
		names = append(names, x.String())
	}

	var lines []string
	lines = append(lines, header)
	lines = append(lines, ui.C(t.Muted, ui.ProgressBar(d, d+p, 28)))
	lines = append(lines, ui.FilterTabs(names, int(f)))
	lines = append(lines, "")

	rows := indexed(all, f)
	if opt.Group {
		lines = append(lines, groupLines(rows)...)
	} else {
		lines = append(lines, flatLines(rows)...)
	}
	lines = append(lines, "")
	lines = append(lines, ui.C(t.Muted, "Tip: add with `todo add \"Buy milk\"`"))
	ui.Panel(lines)
	return 0
}

func doAdd(ctx context.Context, b todo.Backend, text string) int {
	if _, err := b.Add(ctx, text); err != nil {
		if errors.Is(err, todo.ErrEmptyText) {
			ui.Fail("add: empty text")
			return 2
		}
		ui.Fail("add: " + err.Error())
		return 1
	}
	ui.OK("added")
	return 0
}

func doToggle(ctx context.Context, b todo.Backend, userIndex int) int {
	t, code := pick(b, userIndex)
	if code != 0 {
		return code
	}
	if err := b.Toggle(ctx, t.ID); err != nil {
		ui.Fail("done: " + err.Error())
		return 1
	}
	ui.OK("toggled")
	return 0
}

func doEdit(ctx context.Context, b todo.Backend, userIndex int, text string) int {
	ed, ok := b.(todo.Editor)
	if !ok {
		ui.Fail("edit: not supported by this store")
		return 2
	}
	t, code := pick(b, userIndex)
	if code != 0 {
		return code
	}
	if err := ed.Edit(ctx, t.ID, text); err != nil {
		ui.Fail("edit: " + err.Error())
		return 1
	}
	ui.OK("edited")
	return 0
}

func doRemove(ctx context.Context, b todo.Backend, userIndex int) int {
	t, code := pick(b, userIndex)
	if code != 0 {
		return code
	}
	if err := b.Delete(ctx, t.ID); err != nil {
		ui.Fail("rm: " + err.Error())
		return 1
	}
	ui.OK("removed")
	return 0
}

func doUI(opt Options) int {
	if opt.Open == nil {
		ui.Fail("no store configured")
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), opt.timeout())
	b, err := opt.Open(ctx)
	cancel()
	if err != nil {
		ui.Fail("open: " + err.Error())
		return 1
	}
	defer release(b, opt)

	if err := tui.Run(b, tui.Options{Timeout: opt.timeout(), Logger: opt.Logger}); err != nil {
		ui.Fail("ui: " + err.Error())
		return 1
	}
	return 0
}

// pick resolves a 1-based index into the all view.
func pick(b todo.Backend, userIndex int) (model.Todo, int) {
	all := b.Todos()
	if userIndex < 1 || userIndex > len(all) {
		ui.Fail(fmt.Sprintf("index out of range: have %d, got %d", len(all), userIndex))
		fmt.Fprintln(ui.Err, ui.Dim("Hint: run `todo ls` to see valid indexes"))
		return model.Todo{}, 2
	}
	return all[userIndex-1], 0
}

// -------------- auth ----------------

func doAuthLogin(opt Options) int {
	in := opt.In
	if in == nil {
		in = os.Stdin
	}
	fmt.Fprint(ui.Out, "Paste your access key: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		ui.Fail("read key: " + err.Error())
		return 1
	}
	fmt.Fprintln(ui.Out)
	if err := auth.SetKey(line); err != nil {
		ui.Fail("save key: " + err.Error())
		return 1
	}
	ui.OK("logged in")
	return 0
}

func doAuthLogout() int {
	ki, _ := auth.GetKey()
	if ki != nil && ki.Source == "env" {
		ui.OK("key is provided by " + auth.EnvKey + " (nothing to delete)")
		return 0
	}
	if err := auth.DeleteKey(); err != nil {
		ui.Fail("logout: " + err.Error())
		return 1
	}
	ui.OK("logged out")
	return 0
}

func doAuthStatus() int {
	ki, err := auth.GetKey()
	if err != nil {
		ui.Fail("status: " + err.Error())
		return 1
	}
	if ki == nil {
		fmt.Fprintln(ui.Out, ui.Dim("not logged in"))
		fmt.Fprintln(ui.Out, "Run: todo auth login")
		return 0
	}
	fmt.Fprintf(ui.Out, "key: %s\n", auth.Mask(ki.Key))
	fmt.Fprintf(ui.Out, "source: %s\n", ki.Source)
	if !ki.CreatedAt.IsZero() {
		fmt.Fprintf(ui.Out, "saved: %s\n", ki.CreatedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintln(ui.Out, "env override: "+auth.EnvKey)
	return 0
}

// -------------- rendering helpers --------------

type entry struct {
	index int // 1-based, in the all view
	todo  model.Todo
}

func indexed(all []model.Todo, f model.Filter) []entry {
	out := make([]entry, 0, len(all))
	for i, t := range all {
		if f.Match(t) {
			out = append(out, entry{index: i + 1, todo: t})
		}
	}
	return out
}

func flatLines(rows []entry) []string {
	if len(rows) == 0 {
		return []string{ui.C(ui.Current().Muted, "no items")}
	}
	out := make([]string, 0, len(rows))
	for _, e := range rows {
		idx := fmt.Sprintf("%2d.", e.index)
		text := e.todo.Text
		if r := []rune(text); len(r) > 80 {
			text = string(r[:77]) + "..."
		}
		line := fmt.Sprintf("%s %s %s", ui.Dim(idx), ui.Box(e.todo.Done), text)
		if e.todo.CreatedAt != nil {
			line += "  " + ui.Dim(e.todo.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		out = append(out, line)
	}
	return out
}

func groupLines(rows []entry) []string {
	var pend, done []entry
	for _, e := range rows {
		if e.todo.Done {
			done = append(done, e)
		} else {
			pend = append(pend, e)
		}
	}
	var lines []string
	lines = append(lines, ui.C(ui.Current().Accent, "Pending"))
	if len(pend) == 0 {
		lines = append(lines, ui.C(ui.Current().Muted, "(none)"))
	} else {
		lines = append(lines, flatLines(pend)...)
	}
	lines = append(lines, "")
	lines = append(lines, ui.C(ui.Current().Accent, "Done"))
	if len(done) == 0 {
		lines = append(lines, ui.C(ui.Current().Muted, "(none)"))
	} else {
		lines = append(lines, flatLines(done)...)
	}
	return lines
}
