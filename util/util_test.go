package util_test

import (
	"os"
	"testing"

	"github.com/datalift/ingest-services/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringListContains(t *testing.T) {
	list := []string{"apple", "orange", "banana"}
	assert.True(t, util.StringListContains(list, "orange"))
	assert.False(t, util.StringListContains(list, "wedgewood"))
	assert.False(t, util.StringListContains(nil, "apple"))
}

func TestCleanETag(t *testing.T) {
	assert.Equal(t, "0a1b2c3d", util.CleanETag("\"0a1b2c3d\""))
	assert.Equal(t, "0a1b2c3d", util.CleanETag("0a1b2c3d"))
}

func TestBaseNameWithoutExtension(t *testing.T) {
	assert.Equal(t, "orders", util.BaseNameWithoutExtension("acme/orders.csv"))
	assert.Equal(t, "orders", util.BaseNameWithoutExtension("orders.csv"))
	assert.Equal(t, "orders", util.BaseNameWithoutExtension("a/b/c/orders.ndjson"))
	assert.Equal(t, "noext", util.BaseNameWithoutExtension("noext"))
}

func TestKeySource(t *testing.T) {
	assert.Equal(t, "acme", util.KeySource("acme/orders.csv"))
	assert.Equal(t, "acme", util.KeySource("/acme/orders.csv"))
	assert.Equal(t, "", util.KeySource("orders.csv"))
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.Nil(t, err)

	expanded, err := util.ExpandTilde("~/tmp")
	require.Nil(t, err)
	assert.Equal(t, home+"/tmp", expanded)

	expanded, err = util.ExpandTilde("/var/tmp")
	require.Nil(t, err)
	assert.Equal(t, "/var/tmp", expanded)
}

func TestFileExists(t *testing.T) {
	f, err := os.CreateTemp("", "util_test")
	require.Nil(t, err)
	defer os.Remove(f.Name())
	f.Close()

	assert.True(t, util.FileExists(f.Name()))
	assert.False(t, util.FileExists(f.Name()+".missing"))
}
