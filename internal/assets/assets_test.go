package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		path     string
		expected Kind
	}{
		{"styles/main.css", KindCSS},
		{"src/app.js", KindJS},
		{"src/App.jsx", KindJSX},
		{"src/util.ts", KindTS},
		{"src/Index.TSX", KindTSX},
		{"index.html", KindHTML},
		{"legacy.HTM", KindHTML},
		{"image.png", KindJS},
		{"Makefile", KindJS},
		{"", KindJS},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.expected, Classify(tc.path))
		})
	}
}

func TestKindContentType(t *testing.T) {
	assert.Equal(t, "text/css", KindCSS.ContentType())
	assert.Equal(t, "text/html", KindHTML.ContentType())
	assert.Equal(t, "application/javascript", KindJS.ContentType())
	assert.Equal(t, "application/javascript", KindJSX.ContentType())
	assert.Equal(t, "application/javascript", KindTS.ContentType())
	assert.Equal(t, "application/javascript", KindTSX.ContentType())
}

func TestKindPassThrough(t *testing.T) {
	assert.True(t, KindCSS.PassThrough())
	assert.True(t, KindHTML.PassThrough())
	assert.False(t, KindJS.PassThrough())
	assert.False(t, KindTS.PassThrough())
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("hello"))
	b := ContentHash([]byte("hello"))
	c := ContentHash([]byte("hello "))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestTrackedFileClone(t *testing.T) {
	original := &TrackedFile{
		Path:        "/proj/src/app.ts",
		Kind:        KindTS,
		Hash:        ContentHash([]byte("let x = 1")),
		Original:    []byte("let x = 1"),
		Transformed: []byte("var x = 1;"),
	}

	clone := original.Clone()
	assert.Equal(t, original, clone)

	// Mutating the clone must not affect the original.
	clone.Transformed[0] = '!'
	assert.NotEqual(t, original.Transformed, clone.Transformed)
}
