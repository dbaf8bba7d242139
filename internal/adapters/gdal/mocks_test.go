package gdal

import (
	"context"
	"fmt"
	"os"
)

// fakeRunner returns canned output per command name and records every call.
type fakeRunner struct {
	outputs map[string][]byte // keyed by command name
	errs    map[string]error
	calls   []fakeCall

	// createLastArg makes the runner touch the file named by the last
	// argument, the way gdal_translate produces its output.
	createLastArg bool
}

type fakeCall struct {
	stdin string
	name  string
	args  []string
}

func (f *fakeRunner) Run(_ context.Context, stdin, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, fakeCall{stdin: stdin, name: name, args: args})
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	if f.createLastArg && len(args) > 0 {
		if err := os.WriteFile(args[len(args)-1], []byte("tiff"), 0644); err != nil {
			return nil, err
		}
	}
	out, ok := f.outputs[name]
	if !ok {
		return nil, fmt.Errorf("unexpected command %s", name)
	}
	return out, nil
}

func (f *fakeRunner) lastCall(name string) (fakeCall, bool) {
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].name == name {
			return f.calls[i], true
		}
	}
	return fakeCall{}, false
}
