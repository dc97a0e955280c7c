package content_store

// DefaultCapacity is the size of the shared buffer when none is configured.
const DefaultCapacity = 8192

// DefaultContent seeds the buffer the first time a regular file is opened.
const DefaultContent = "Hello from vtfs!\n"

// ContentStore is the single byte buffer shared by every regular file of one
// mounted instance. Writes past capacity are cut short, never rejected.
type ContentStore struct {
	buf    []byte
	length int
	seeded bool
}

func New(capacity int) *ContentStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ContentStore{buf: make([]byte, capacity)}
}

// Read copies up to length bytes starting at offset and returns the offset
// just past the data. Reads at or beyond the current length return nothing.
func (c *ContentStore) Read(offset int64, length int64) ([]byte, int64) {
	if offset < 0 {
		offset = 0
	}
	if length <= 0 || offset >= int64(c.length) {
		return []byte{}, offset
	}

	end := offset + length
	if end > int64(c.length) {
		end = int64(c.length)
	}

	out := make([]byte, end-offset)
	copy(out, c.buf[offset:end])
	return out, end
}

// Write stores data at offset and reports how many bytes fit.
func (c *ContentStore) Write(offset int64, data []byte) int {
	if offset < 0 || offset >= int64(len(c.buf)) {
		return 0
	}

	n := copy(c.buf[offset:], data)
	if end := int(offset) + n; n > 0 && end > c.length {
		c.length = end
	}
	return n
}

// SeedDefault fills an empty buffer with content. It fires at most once per
// store, even if the buffer is emptied again later.
func (c *ContentStore) SeedDefault(content string) bool {
	if c.seeded || c.length != 0 {
		return false
	}
	c.seeded = true
	c.length = copy(c.buf, content)
	return true
}

func (c *ContentStore) Len() int {
	return c.length
}

func (c *ContentStore) Capacity() int {
	return len(c.buf)
}
