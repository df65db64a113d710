package acquire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<!DOCTYPE html>
<html><body>
<h2>Download</h2>
<a href="/rwd/bind/chemsearch/marvin/SDFdownload.jsp?download_file=/bind/downloads/BindingDB_All_2D_202601_sdf.zip">SDF</a>
<a href="/rwd/bind/chemsearch/marvin/SDFdownload.jsp?download_file=/bind/downloads/BindingDB_Articles_202601_tsv.zip">Articles</a>
<a href="/rwd/bind/chemsearch/marvin/SDFdownload.jsp?download_file=/bind/downloads/BindingDB_ChEMBL_202601_tsv.zip">ChEMBL</a>
<a class="dl" href="/rwd/bind/chemsearch/marvin/SDFdownload.jsp?download_file=/bind/downloads/BindingDB_All_202601_tsv.zip">All</a>
<a href="https://mirror.example.org/BindingDB_Patents_202601_tsv.zip">Patents</a>
<a>no href</a>
</body></html>`

func TestFindCandidates(t *testing.T) {
	got, err := FindCandidates(strings.NewReader(listingPage))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/bind/downloads/BindingDB_Articles_202601_tsv.zip",
		"/bind/downloads/BindingDB_ChEMBL_202601_tsv.zip",
		"/bind/downloads/BindingDB_All_202601_tsv.zip",
		"https://mirror.example.org/BindingDB_Patents_202601_tsv.zip",
	}, got)
}

func TestFindCandidates_NoLinks(t *testing.T) {
	got, err := FindCandidates(strings.NewReader("<html><body><p>maintenance</p></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSelectArchive(t *testing.T) {
	tests := []struct {
		name      string
		cands     []string
		want      string
		preferred bool
		err       error
	}{
		{
			name:      "full archive preferred over subsets",
			cands:     []string{"/d/BindingDB_Articles_1_tsv.zip", "/d/BindingDB_All_1_tsv.zip"},
			want:      "/d/BindingDB_All_1_tsv.zip",
			preferred: true,
		},
		{
			name:      "first full archive wins",
			cands:     []string{"/d/BindingDB_All_2_tsv.zip", "/d/BindingDB_All_1_tsv.zip"},
			want:      "/d/BindingDB_All_2_tsv.zip",
			preferred: true,
		},
		{
			name:  "fallback to first candidate",
			cands: []string{"/d/BindingDB_Patents_1_tsv.zip", "/d/other_tsv.zip"},
			want:  "/d/BindingDB_Patents_1_tsv.zip",
		},
		{
			name: "none",
			err:  ErrNoCandidate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, preferred, err := SelectArchive(tt.cands)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.preferred, preferred)
		})
	}
}

func TestResolveURL(t *testing.T) {
	got, err := ResolveURL(DefaultBaseURL, "/bind/downloads/BindingDB_All_202601_tsv.zip")
	require.NoError(t, err)
	assert.Equal(t, "https://www.bindingdb.org/bind/downloads/BindingDB_All_202601_tsv.zip", got)

	got, err = ResolveURL(DefaultBaseURL, "https://mirror.example.org/a_tsv.zip")
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example.org/a_tsv.zip", got)

	got, err = ResolveURL("http://127.0.0.1:8080/listing/", "files/a_tsv.zip")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/listing/files/a_tsv.zip", got)
}
