package hmr

import (
	"bytes"
	_ "embed"
)

//go:embed client.js
var clientScript []byte

var scriptTag = func() []byte {
	var buf bytes.Buffer
	buf.WriteString("<script type=\"module\">\n")
	buf.Write(clientScript)
	buf.WriteString("</script>")
	return buf.Bytes()
}()

// ClientScript returns the raw live-reload client source.
func ClientScript() []byte {
	return append([]byte(nil), clientScript...)
}

// InjectClient embeds the live-reload client into an HTML document.
// The script goes before </head> when present, otherwise before
// </body>, otherwise it is appended. Non-HTML input passes through
// with the tag appended, which browsers ignore outside documents.
func InjectClient(html []byte) []byte {
	for _, marker := range [][]byte{[]byte("</head>"), []byte("</body>")} {
		if idx := lastIndexFold(html, marker); idx >= 0 {
			out := make([]byte, 0, len(html)+len(scriptTag)+1)
			out = append(out, html[:idx]...)
			out = append(out, scriptTag...)
			out = append(out, '\n')
			out = append(out, html[idx:]...)
			return out
		}
	}
	out := make([]byte, 0, len(html)+len(scriptTag)+1)
	out = append(out, html...)
	out = append(out, '\n')
	out = append(out, scriptTag...)
	return out
}

// lastIndexFold finds the last ASCII case-insensitive occurrence of
// sep in s.
func lastIndexFold(s, sep []byte) int {
	for i := len(s) - len(sep); i >= 0; i-- {
		if bytes.EqualFold(s[i:i+len(sep)], sep) {
			return i
		}
	}
	return -1
}
