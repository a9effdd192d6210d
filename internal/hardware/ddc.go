package hardware

import (
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/monitor"
)

const (
	brightnessVCP     = "10"
	defaultDDCTimeout = 5 * time.Second
)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// DDC drives external monitors through the ddcutil executable.
type DDC struct {
	binary  string
	timeout time.Duration
	run     Runner
}

func NewDDC(binary string, timeout time.Duration) *DDC {
	if binary == "" {
		binary = "ddcutil"
	}
	if timeout <= 0 {
		timeout = defaultDDCTimeout
	}
	return &DDC{binary: binary, timeout: timeout, run: execRunner}
}

// WithRunner replaces command execution, used by tests.
func (d *DDC) WithRunner(run Runner) *DDC {
	d.run = run
	return d
}

func (d *DDC) Brightness(ctx context.Context, m monitor.Monitor) (Brightness, error) {
	out, err := d.exec(ctx, m, "getvcp", brightnessVCP, "--brief")
	if err != nil {
		return Brightness{}, d.classify(ErrReadBrightness, m, out, err)
	}

	return parseGetVCP(out)
}

func (d *DDC) SetBrightness(ctx context.Context, m monitor.Monitor, value int) error {
	out, err := d.exec(ctx, m, "setvcp", brightnessVCP, strconv.Itoa(value))
	if err != nil {
		return d.classify(ErrWriteBrightness, m, out, err)
	}
	return nil
}

func (d *DDC) exec(ctx context.Context, m monitor.Monitor, args ...string) ([]byte, error) {
	if m.DDCDisplay < 1 {
		return nil, errors.New().WithData(errors.ErrUnsupportedDevice,
			fmt.Sprintf("monitor %s has no DDC display number", m.ID))
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	args = append(args, "--display", strconv.Itoa(m.DDCDisplay))
	out, err := d.run(ctx, d.binary, args...)
	if err != nil && ctx.Err() != nil {
		return out, ctx.Err()
	}
	return out, err
}

// classify turns a ddcutil failure into unsupported_device when the output
// shows the display cannot be reached over DDC/CI, and into code otherwise.
func (d *DDC) classify(code errors.ErrorCode, m monitor.Monitor, out []byte, err error) error {
	errFactory := errors.New()

	if errors.HasCode(err, errors.ErrUnsupportedDevice) || stderrors.Is(err, exec.ErrNotFound) {
		return errFactory.Wrap(errors.ErrUnsupportedDevice, err)
	}

	text := string(out)
	for _, marker := range unsupportedMarkers {
		if strings.Contains(text, marker) {
			return errFactory.Wrap(errors.ErrUnsupportedDevice,
				fmt.Errorf("monitor %s: %s", m.ID, strings.TrimSpace(text)))
		}
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return errFactory.Wrap(errors.ErrTimeout, err)
	}

	return errFactory.Wrap(code, fmt.Errorf("%w: %s", err, strings.TrimSpace(text)))
}

// parseGetVCP parses `getvcp 10 --brief` output: "VCP 10 C <current> <max>".
func parseGetVCP(out []byte) (Brightness, error) {
	errFactory := errors.New()

	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[0] != "VCP" || !strings.EqualFold(fields[1], brightnessVCP) {
			continue
		}
		if fields[2] != "C" {
			return Brightness{}, errFactory.WithData(errors.ErrUnsupportedDevice,
				fmt.Sprintf("brightness is not a continuous feature: %q", line))
		}

		current, err := strconv.Atoi(fields[3])
		if err != nil {
			return Brightness{}, errFactory.Wrap(ErrParseOutput, err)
		}
		maxValue, err := strconv.Atoi(fields[4])
		if err != nil {
			return Brightness{}, errFactory.Wrap(ErrParseOutput, err)
		}

		return Brightness{Current: current, Max: maxValue}, nil
	}

	return Brightness{}, errFactory.WithData(ErrParseOutput, strings.TrimSpace(string(out)))
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
