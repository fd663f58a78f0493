package cli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	reader := bufio.NewReader(strings.NewReader("  hello world  \n"))

	got, err := GetSimpleText(reader, "Enter something", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
	assert.Contains(t, out.String(), "Enter something")
}

func TestGetSimpleText_EOFWithPartialLine(t *testing.T) {
	var out bytes.Buffer
	reader := bufio.NewReader(strings.NewReader("partial"))

	got, err := GetSimpleText(reader, "Prompt", &out)
	require.NoError(t, err)
	assert.Equal(t, "partial", got)
}

func TestGetPassword_UsesStub(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(fd int) ([]byte, error) { return []byte("secret"), nil }

	var out bytes.Buffer
	pw, err := GetPassword(&out)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), pw)
}

func TestGetFields(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader("name=Ilya\nmissions = 3\nnot a pair\n\n"))

	fields, err := GetFields(reader)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "Ilya", "missions": "3"}, fields)
}

func TestParseKind(t *testing.T) {
	k, err := parseKind("hero")
	require.NoError(t, err)
	assert.EqualValues(t, "hero", k)

	_, err = parseKind("dragon")
	assert.Error(t, err)
}
