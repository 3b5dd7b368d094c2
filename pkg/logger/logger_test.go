package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")
	for in, want := range map[string]logrus.Level{
		"silent": logrus.PanicLevel,
		"error":  logrus.ErrorLevel,
		" WARN ": logrus.WarnLevel,
		"debug":  logrus.DebugLevel,
		"chatty": logrus.InfoLevel,
	} {
		SetLevel(in)
		assert.Equal(t, want, L().GetLevel(), in)
	}
}

func TestLevelsFilterOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	defer SetLevel("info")

	SetLevel("warn")
	Infof("hidden %d", 1)
	Warnf("shown %d", 2)
	WithFields(logrus.Fields{"session": "s1"}).Error("with fields")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "session=s1")
}

func TestInitLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ida.log")
	require.NoError(t, InitLogger(path, "info"))
	defer func() {
		Close()
		SetOutput(os.Stdout)
	}()

	Info("written to %s", "file")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}
