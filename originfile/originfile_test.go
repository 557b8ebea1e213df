package originfile

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const origin = `
Artist:         Boards of Canada
Name:           Geogaddi
Edition:        ~
Edition year:   2012
Media:          CD
Catalog number: WARPCD101
Record label:   Warp Records
Original year:  2002
Format:         FLAC
File count:     23
Permalink:      https://example.com/torrents.php?id=1
`

func TestFind(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/in/Geogaddi/origin.yml", []byte(origin), 0o644))

	of, err := Find(fs, "/in/Geogaddi")
	require.NoError(t, err)
	require.NotNil(t, of)
	assert.Equal(t, "Geogaddi", of.Name)
	assert.Equal(t, 2002, of.Year())
	assert.Equal(t, "https://example.com/torrents.php?id=1", of.Permalink)
	assert.Equal(t, "Boards of Canada - Geogaddi (2002) [Warp Records WARPCD101] CD FLAC", of.String())
}

func TestFindMissing(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("/in/empty", 0o755))

	of, err := Find(fs, "/in/empty")
	require.NoError(t, err)
	assert.Nil(t, of)
}

func TestFindMalformed(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/in/x/origin.yaml", []byte("Edition year: [nope"), 0o644))

	_, err := Find(fs, "/in/x")
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Geogaddi (2012)", (&OriginFile{Name: "Geogaddi", EditionYear: 2012}).String())
	assert.Equal(t, "Boards of Canada [WARPCD101]", (&OriginFile{Artist: "Boards of Canada", CatalogueNumber: "WARPCD101"}).String())
	assert.Equal(t, "", (&OriginFile{}).String())
}
