package extract

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"paper-archiver/internal/archive"
)

func TestYearFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		want int
	}{
		{"plain year", "https://papers.nips.cc/paper/2023", 2023},
		{"digits scattered", "https://papers.nips.cc/paper_files/paper/2019", 2019},
		{"no digits", "https://papers.nips.cc/paper/latest", 0},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, YearFromURL(tt.url))
		})
	}
}

func TestYearTasksOrderingAndTruncation(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<a href="/paper/2019">2019</a>
		<a href="/paper/2023">2023</a>
		<a href="/paper/2021">2021</a>
		<a href="/paper/2023">2023 dup</a>
		<a href="/paper/2020">2020</a>
		<a href="/paper/2022">2022</a>
		<a href="/paper/2018">2018</a>
		<a href="/other/2024">not a paper link</a>
	</body></html>`
	doc, err := Parse([]byte(html))
	require.NoError(t, err)
	base, _ := url.Parse("https://papers.nips.cc")

	tasks := YearTasks(doc, base, 5)
	require.Len(t, tasks, 5)

	years := make([]int, len(tasks))
	for i, task := range tasks {
		years[i] = task.Year
		require.Equal(t, archive.KindYear, task.Ref.Kind)
	}
	require.Equal(t, []int{2023, 2022, 2021, 2020, 2019}, years)
	require.Equal(t, "https://papers.nips.cc/paper/2023", tasks[0].Ref.URL)
}

func TestYearTasksUnparsableYearSortsLast(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<a href="/paper/archive">no digits</a>
		<a href="/paper/2020">2020</a>
	</body></html>`
	doc, err := Parse([]byte(html))
	require.NoError(t, err)
	base, _ := url.Parse("https://papers.nips.cc")

	tasks := YearTasks(doc, base, 5)
	require.Len(t, tasks, 2)
	require.Equal(t, 2020, tasks[0].Year)
	require.Equal(t, 0, tasks[1].Year)
}

func TestPaperTasks(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<a href="/paper/2023/hash-one-Abstract.html">one</a>
		<a href="/paper/2023/hash-two-Abstract.html">two</a>
		<a href="/paper/2023/something.pdf">not html</a>
	</body></html>`
	doc, err := Parse([]byte(html))
	require.NoError(t, err)
	base, _ := url.Parse("https://papers.nips.cc")

	tasks := PaperTasks(doc, base)
	require.Len(t, tasks, 2)
	require.Equal(t, "https://papers.nips.cc/paper/2023/hash-one-Abstract.html", tasks[0].Ref.URL)
	require.Equal(t, archive.KindPaper, tasks[0].Ref.Kind)
}

func TestPDFRefFirstMatchWins(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<a href="/files/first-Paper-Conference.pdf">pdf</a>
		<a href="/files/second-Paper.pdf">other pdf</a>
	</body></html>`
	doc, err := Parse([]byte(html))
	require.NoError(t, err)
	base, _ := url.Parse("https://papers.nips.cc")

	ref, ok := PDFRef(doc, base)
	require.True(t, ok)
	require.Equal(t, "https://papers.nips.cc/files/first-Paper-Conference.pdf", ref.URL)
	require.Equal(t, archive.KindPDF, ref.Kind)
}

func TestPDFRefLegacyNaming(t *testing.T) {
	t.Parallel()

	html := `<html><body><a href="/files/old-Paper.pdf">pdf</a></body></html>`
	doc, err := Parse([]byte(html))
	require.NoError(t, err)
	base, _ := url.Parse("https://papers.nips.cc")

	ref, ok := PDFRef(doc, base)
	require.True(t, ok)
	require.Equal(t, "https://papers.nips.cc/files/old-Paper.pdf", ref.URL)
}

func TestPDFRefAbsenceIsNotAnError(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<a href="/files/supplement.pdf">unrecognized naming</a>
	</body></html>`
	doc, err := Parse([]byte(html))
	require.NoError(t, err)
	base, _ := url.Parse("https://papers.nips.cc")

	_, ok := PDFRef(doc, base)
	require.False(t, ok)
}
