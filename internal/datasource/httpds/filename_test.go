package httpds

import "testing"

func TestHashString_Stable(t *testing.T) {
	t.Parallel()

	const input = "https://example.com/path?x=1&y=2"
	got1 := HashString(input)
	got2 := HashString(input)

	if got1 == "" {
		t.Fatalf("HashString returned empty string")
	}
	if got1 != got2 {
		t.Fatalf("HashString(%q) not stable: %q vs %q", input, got1, got2)
	}
	if HashString(input+"z") == got1 {
		t.Fatalf("different inputs should hash differently")
	}
}

func TestFilenameFromURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "download_file param",
			in:   "https://www.bindingdb.org/rwd/bind/downloads/dl.jsp?download_file=/bind/downloads/BindingDB_All_202501_tsv.zip",
			want: "BindingDB_All_202501_tsv.zip",
		},
		{
			name: "path with extension",
			in:   "https://example.org/files/data.zip",
			want: "data.zip",
		},
		{
			name: "query fallback",
			in:   "https://example.org/get?id=7&fmt=tsv",
			want: "id_7_fmt_tsv",
		},
		{
			name: "traversal is neutralized",
			in:   "https://example.org/dl?download_file=../../etc/..",
			want: "download_file_.._.._etc_..",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := FilenameFromURL(tc.in); got != tc.want {
				t.Fatalf("FilenameFromURL(%q)=%q; want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFilenameFromURL_FallsBackOnInvalidURL(t *testing.T) {
	t.Parallel()

	raw := ":// not a url"
	if got, want := FilenameFromURL(raw), HashString(raw); got != want {
		t.Fatalf("FilenameFromURL(%q)=%q; want hash %q", raw, got, want)
	}
}
