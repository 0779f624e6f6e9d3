package probe

import "bytes"

// contentMatcher procura needle no body enquanto ele é lido.
// Guarda os últimos len(needle)-1 bytes para achar ocorrências entre chunks.
type contentMatcher struct {
	needle []byte
	tail   []byte
	found  bool
}

func newContentMatcher(needle string) *contentMatcher {
	return &contentMatcher{needle: []byte(needle)}
}

func (m *contentMatcher) Write(p []byte) (int, error) {
	if m.found || len(m.needle) == 0 {
		return len(p), nil
	}

	buf := append(m.tail, p...)
	if bytes.Contains(buf, m.needle) {
		m.found = true
		m.tail = nil
		return len(p), nil
	}

	keep := len(m.needle) - 1
	if len(buf) > keep {
		buf = buf[len(buf)-keep:]
	}
	m.tail = append(m.tail[:0], buf...)
	return len(p), nil
}

// Found indica se needle apareceu (needle vazio sempre casa)
func (m *contentMatcher) Found() bool {
	return m.found || len(m.needle) == 0
}
