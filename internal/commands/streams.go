package commands

import (
	"os"

	"github.com/bokysan/streamio/internal/args"
	"github.com/bokysan/streamio/internal/rawio"
	"github.com/bokysan/streamio/internal/streams"
	"github.com/bokysan/streamio/internal/textio"
)

// StdStream is the file name which stands for stdin or stdout
const StdStream = "-"

// OpenInput opens a file, stdin or a websocket URL as a text stream for reading
func OpenInput(name string, opts *args.StreamOptions) (*textio.TextStream, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	switch {
	case name == "" || name == StdStream:
		return textio.Wrap(rawio.NewFileChannel(os.Stdin, true, false), opts.BufferSize, opts.TextOptions())
	case rawio.IsWebsocketURL(name):
		return openWebsocket(name, false, opts)
	}
	return textio.Open(name, "r", opts.BufferSize, opts.TextOptions())
}

// OpenOutput creates or truncates a file, takes stdout or connects to a websocket URL as a text stream for
// writing
func OpenOutput(name string, opts *args.StreamOptions) (*textio.TextStream, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	switch {
	case name == "" || name == StdStream:
		return textio.Wrap(rawio.NewFileChannel(os.Stdout, false, true), opts.BufferSize, opts.TextOptions())
	case rawio.IsWebsocketURL(name):
		return openWebsocket(name, true, opts)
	}
	return textio.Open(name, "w", opts.BufferSize, opts.TextOptions())
}

// openWebsocket uses one direction of a websocket connection, since a socket can't be wrapped for random access
func openWebsocket(url string, write bool, opts *args.StreamOptions) (*textio.TextStream, error) {
	raw, err := rawio.DialWebsocket(url)
	if err != nil {
		return nil, err
	}
	var buffer *streams.BufferedStream
	if write {
		buffer, err = streams.NewBufferedWriter(raw, opts.BufferSize)
	} else {
		buffer, err = streams.NewBufferedReader(raw, opts.BufferSize)
	}
	if err != nil {
		streams.TryClose(raw)
		return nil, err
	}
	text, err := textio.NewTextStream(buffer, opts.TextOptions())
	if err != nil {
		streams.TryClose(buffer)
		return nil, err
	}
	return text, nil
}

// OpenRaw opens a file, one of the standard streams or a websocket URL as a raw channel
func OpenRaw(name string, write bool) (rawio.RawChannel, error) {
	switch {
	case name == "" || name == StdStream:
		if write {
			return rawio.NewFileChannel(os.Stdout, false, true), nil
		}
		return rawio.NewFileChannel(os.Stdin, true, false), nil
	case rawio.IsWebsocketURL(name):
		ws, err := rawio.DialWebsocket(name)
		if err != nil {
			return nil, err
		}
		return ws, nil
	}
	if write {
		return rawio.OpenFile(name, "w", 0666)
	}
	return rawio.OpenFile(name, "r", 0)
}
