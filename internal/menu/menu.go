// Package menu runs the numbered interactive menu of a record-keeping
// system over a store.Store. The menu entries, prompts and messages are
// derived from the system's schema.
package menu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/recordkeeper/internal/store"
	"github.com/mesh-intelligence/recordkeeper/pkg/types"
)

const tracerName = "github.com/mesh-intelligence/recordkeeper/internal/menu"

// Console messages.
const (
	msgChoice  = "Enter your choice: "
	msgInvalid = "Invalid choice. Please try again."
	msgExit    = "Exiting the program."
)

// Option configures a Menu.
type Option func(*Menu)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Menu) {
		if l != nil {
			m.log = l
		}
	}
}

// WithTracer sets the tracer used for per-action spans. The default is
// the global provider's tracer.
func WithTracer(t trace.Tracer) Option {
	return func(m *Menu) { m.tracer = t }
}

// Menu reads choices and field values line by line from in and writes
// prompts and results to out.
type Menu struct {
	store  *store.Store
	schema *types.Schema
	in     *bufio.Scanner
	out    io.Writer
	log    *zap.Logger
	tracer trace.Tracer
}

// errEOF ends the loop when input runs out.
var errEOF = errors.New("end of input")

// New returns a Menu over s.
func New(s *store.Store, in io.Reader, out io.Writer, opts ...Option) *Menu {
	m := &Menu{
		store:  s,
		schema: s.Schema(),
		in:     bufio.NewScanner(in),
		out:    out,
		log:    zap.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run shows the menu until the user picks Exit, input ends, or ctx is
// cancelled. Operation failures are printed and the loop continues; only
// I/O errors on the console are returned.
func (m *Menu) Run(ctx context.Context) error {
	exit := len(m.schema.Menu) + 1
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.display()
		line, err := m.ask(msgChoice)
		if errors.Is(err, errEOF) {
			return nil
		}
		if err != nil {
			return err
		}
		n, ok := parseChoice(line, exit)
		switch {
		case !ok:
			m.println(msgInvalid)
		case n == exit:
			m.println(msgExit)
			return nil
		default:
			if err := m.dispatch(ctx, m.schema.Menu[n-1]); err != nil {
				if errors.Is(err, errEOF) {
					return nil
				}
				return err
			}
		}
	}
}

func (m *Menu) display() {
	m.println("")
	m.println(m.schema.Title)
	for i, item := range m.schema.Menu {
		m.printf("%d. %s\n", i+1, item.Label)
	}
	m.printf("%d. Exit\n", len(m.schema.Menu)+1)
}

func parseChoice(line string, exit int) (int, bool) {
	var n int
	if _, err := fmt.Sscanf(line, "%d", &n); err != nil || fmt.Sprint(n) != line {
		return 0, false
	}
	return n, n >= 1 && n <= exit
}

// dispatch runs one menu action inside a span. Store errors are printed;
// console errors are returned.
func (m *Menu) dispatch(ctx context.Context, item types.MenuItem) error {
	ctx, span := m.tracer.Start(ctx, "menu."+item.Action, trace.WithAttributes(
		attribute.String("keeper.system", m.schema.Name),
		attribute.String("keeper.kind", item.Kind),
	))
	defer span.End()

	k, err := m.schema.Kind(item.Kind)
	if err != nil {
		return err
	}
	var opErr error
	switch item.Action {
	case types.ActionAdd:
		opErr = m.add(ctx, item, k)
	case types.ActionCreate:
		opErr = m.create(ctx, item, k)
	case types.ActionAttach:
		opErr = m.attach(ctx, k)
	case types.ActionComplete:
		opErr = m.complete(ctx, item, k)
	case types.ActionInfo:
		opErr = m.info(k)
	case types.ActionList:
		opErr = m.list(k)
	case types.ActionRelated:
		opErr = m.related(item, k)
	}
	if opErr == nil {
		return nil
	}
	if errors.Is(opErr, errEOF) || isConsole(opErr) {
		span.SetStatus(codes.Error, opErr.Error())
		return opErr
	}
	span.RecordError(opErr)
	span.SetStatus(codes.Error, "operation failed")
	m.log.Debug("operation failed", zap.String("action", item.Action), zap.String("kind", k.Name), zap.Error(opErr))
	m.println(m.message(opErr))
	return nil
}

// consoleError wraps read and write failures on the console.
type consoleError struct{ err error }

func (e consoleError) Error() string { return e.err.Error() }
func (e consoleError) Unwrap() error { return e.err }

func isConsole(err error) bool {
	var ce consoleError
	return errors.As(err, &ce)
}

// message renders an operation error for the console.
func (m *Menu) message(err error) string {
	var fe *types.FieldError
	if !errors.As(err, &fe) {
		return err.Error()
	}
	name := strings.ReplaceAll(fe.Field, "_", " ")
	if k, kerr := m.schema.Kind(fe.Kind); kerr == nil {
		if f, ok := k.Field(fe.Field); ok {
			name = lowerFirst(f.DisplayName())
		}
	}
	return fmt.Sprintf("Invalid %s: %q", name, fmt.Sprint(fe.Value))
}

func (m *Menu) add(ctx context.Context, item types.MenuItem, k *types.Kind) error {
	attrs := map[string]any{}
	for i := range k.Fields {
		f := &k.Fields[i]
		if f.Name == k.Key && k.KeyMode == types.KeySequence || f.Type == types.FieldIDs {
			continue
		}
		v, err := m.ask("Enter " + addPrompt(k, f) + ": ")
		if err != nil {
			return err
		}
		attrs[f.Name] = v
	}
	rec, err := m.store.Add(ctx, k.Name, attrs)
	if err != nil {
		return err
	}
	m.printf("%s: %s\n", result(item, "Added "+k.Singular), rec)
	return nil
}

func (m *Menu) create(ctx context.Context, item types.MenuItem, k *types.Kind) error {
	attrs := map[string]any{}
	for i := range k.Fields {
		f := &k.Fields[i]
		if f.Name == k.Key && k.KeyMode == types.KeySequence || f.Type == types.FieldIDs || f.Name == k.Completion {
			continue
		}
		v, err := m.ask("Enter " + prompt(f) + ": ")
		if err != nil {
			return err
		}
		attrs[f.Name] = v
	}
	rec, err := m.store.CreateLink(ctx, k.Name, attrs)
	if err != nil {
		return err
	}
	m.printf("%s: %s\n", result(item, "Created "+k.Singular), rec)
	return nil
}

func (m *Menu) attach(ctx context.Context, k *types.Kind) error {
	mf, _ := k.Field(k.Members)
	member, err := m.ask("Enter " + prompt(mf) + ": ")
	if err != nil {
		return err
	}
	kf := k.KeyField()
	key, err := m.ask("Enter " + prompt(kf) + ": ")
	if err != nil {
		return err
	}
	if err := m.store.AttachMember(ctx, k.Name, key, member); err != nil {
		return err
	}
	target, _ := m.schema.Kind(mf.Ref)
	m.printf("Assigned %s %s to %s %s\n", target.Singular, member, k.Singular, key)
	return nil
}

func (m *Menu) complete(ctx context.Context, item types.MenuItem, k *types.Kind) error {
	key, err := m.ask("Enter " + prompt(k.KeyField()) + ": ")
	if err != nil {
		return err
	}
	cf, _ := k.Field(k.Completion)
	v, err := m.ask("Enter " + prompt(cf) + ": ")
	if err != nil {
		return err
	}
	rec, err := m.store.Complete(ctx, k.Name, key, v)
	if err != nil {
		return err
	}
	m.printf("%s: %s\n", result(item, "Completed "+k.Singular), rec)
	return nil
}

func (m *Menu) info(k *types.Kind) error {
	key, err := m.ask("Enter " + prompt(k.KeyField()) + ": ")
	if err != nil {
		return err
	}
	rec, err := m.store.Info(k.Name, key)
	if err != nil {
		return err
	}
	m.printf("%s Info: %s\n", k.Title(), rec)
	return nil
}

func (m *Menu) list(k *types.Kind) error {
	records, err := m.store.List(k.Name)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		m.printf("No %s found.\n", k.Name)
		return nil
	}
	m.printf("%s List:\n", title(k.Name))
	for _, r := range records {
		m.println(r.String())
	}
	return nil
}

func (m *Menu) related(item types.MenuItem, k *types.Kind) error {
	f, _ := k.Field(item.Field)
	key, err := m.ask("Enter " + prompt(f) + ": ")
	if err != nil {
		return err
	}
	records, err := m.store.Related(k.Name, f.Name, key)
	if err != nil {
		return err
	}
	target, _ := m.schema.Kind(f.Ref)
	if len(records) == 0 {
		m.printf("No %s found for %s %s.\n", k.Name, target.Singular, key)
		return nil
	}
	m.printf("%s for %s %s:\n", title(k.Name), target.Singular, key)
	for _, r := range records {
		m.println(r.String())
	}
	return nil
}

// ask prints label and returns the next trimmed input line.
func (m *Menu) ask(label string) (string, error) {
	if _, err := io.WriteString(m.out, label); err != nil {
		return "", consoleError{err}
	}
	if !m.in.Scan() {
		if err := m.in.Err(); err != nil {
			return "", consoleError{err}
		}
		return "", errEOF
	}
	return strings.TrimSpace(m.in.Text()), nil
}

func (m *Menu) println(s string) { fmt.Fprintln(m.out, s) }

func (m *Menu) printf(format string, args ...any) { fmt.Fprintf(m.out, format, args...) }
