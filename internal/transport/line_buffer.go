package transport

import "fmt"

// lineBuffer is a circular byte buffer that yields newline-terminated
// lines. A line longer than the capacity is discarded.
type lineBuffer struct {
	buffer []byte
	head   int
	tail   int
	size   int
	name   string
}

func newLineBuffer(capacity int, name string) *lineBuffer {
	return &lineBuffer{
		buffer: make([]byte, capacity),
		name:   name,
	}
}

// add appends data and returns the number of bytes dropped: an oversized
// partial line, or input arriving while complete lines fill the buffer.
func (lb *lineBuffer) add(data []byte) int {
	dropped := 0
	for i, b := range data {
		if lb.size == len(lb.buffer) {
			if lb.indexNewline() >= 0 {
				return dropped + len(data) - i
			}
			dropped += lb.size
			lb.clear()
		}
		lb.buffer[lb.head] = b
		lb.head = (lb.head + 1) % len(lb.buffer)
		lb.size++
	}
	return dropped
}

func (lb *lineBuffer) indexNewline() int {
	for i := 0; i < lb.size; i++ {
		if lb.buffer[(lb.tail+i)%len(lb.buffer)] == '\n' {
			return i
		}
	}
	return -1
}

// next removes and returns the oldest complete line without its line
// terminator (\n or \r\n)
func (lb *lineBuffer) next() (string, bool) {
	n := lb.indexNewline()
	if n < 0 {
		return "", false
	}
	line := make([]byte, n)
	for i := range line {
		line[i] = lb.buffer[lb.tail]
		lb.tail = (lb.tail + 1) % len(lb.buffer)
	}
	// consume the newline
	lb.tail = (lb.tail + 1) % len(lb.buffer)
	lb.size -= n + 1

	if n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return string(line), true
}

func (lb *lineBuffer) clear() {
	lb.head = 0
	lb.tail = 0
	lb.size = 0
}

func (lb *lineBuffer) len() int {
	return lb.size
}

func (lb *lineBuffer) String() string {
	return fmt.Sprintf("lineBuffer[%s]: size=%d, capacity=%d", lb.name, lb.size, len(lb.buffer))
}
