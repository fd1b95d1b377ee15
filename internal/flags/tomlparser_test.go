package flags

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/bokysan/streamio/internal/args"
	"github.com/bokysan/streamio/internal/textio"
	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/require"
)

func streamParser(t *testing.T, input, output *args.StreamOptions) *flags.Parser {
	parser := flags.NewNamedParser("toml-test", flags.HelpFlag|flags.PrintErrors)
	_, err := parser.AddGroup("Input", "Input stream options", input)
	require.NoError(t, err)
	_, err = parser.AddGroup("Output", "Output stream options", output)
	require.NoError(t, err)
	return parser
}

func Test_TomlStreamGroupsParse(t *testing.T) {
	file := "testdata/stream.toml"

	var input, output args.StreamOptions
	err := NewTomlParser(streamParser(t, &input, &output)).ParseFile(file)
	require.NoErrorf(t, err, "Parsing not successful: %v", file)

	require.Equal(t, "utf-16", input.Encoding)
	require.Equal(t, textio.NewlineCRLF, textio.Newline(input.Newline))
	require.Equal(t, "latin-1", output.Encoding)
	require.Equal(t, 128, output.ChunkSize)
	require.True(t, output.LineBuffering)
}

func Test_TomlReaderErrors(t *testing.T) {
	var input, output args.StreamOptions
	parser := NewTomlParser(streamParser(t, &input, &output))

	require.Error(t, parser.ParseReader(strings.NewReader("[input\nencoding = ")))
	require.Error(t, parser.ParseReader(strings.NewReader("[nothing]\nencoding = \"utf-8\"\n")))
	require.Error(t, parser.ParseReader(strings.NewReader("[input]\nnewline = \"sideways\"\n")))
}

func Test_ParseConfigFile(t *testing.T) {
	var input, output args.StreamOptions
	parser := streamParser(t, &input, &output)

	require.NoError(t, ParseConfigFile(parser, "testdata/stream.toml"))
	require.True(t, output.LineBuffering)

	require.NoError(t, ParseConfigFile(parser, "testdata/stream.yml"))
	require.Equal(t, "utf-16", input.Encoding)

	require.Error(t, ParseConfigFile(parser, filepath.Join(t.TempDir(), "missing.toml")))
}
