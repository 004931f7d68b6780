package codec

import "sync"

// Registry manages the available geometry codecs
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]GeometryCodec // key can be either name or coder id
}

var defaultRegistry = &Registry{
	codecs: make(map[string]GeometryCodec),
}

// Register registers a codec using both its name and coder id
func Register(codec GeometryCodec) {
	defaultRegistry.Register(codec)
}

// Get retrieves a codec by name or coder id string
func Get(nameOrID string) (GeometryCodec, error) {
	return defaultRegistry.Get(nameOrID)
}

// GetByID retrieves a codec by its header selector value
func GetByID(id CoderID) (GeometryCodec, error) {
	return defaultRegistry.Get(id.String())
}

// List returns all registered codecs
func List() []GeometryCodec {
	return defaultRegistry.List()
}

// Register registers a codec using both its name and coder id
func (r *Registry) Register(codec GeometryCodec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Register by both name and id
	r.codecs[codec.Name()] = codec
	r.codecs[codec.ID().String()] = codec
}

// Get retrieves a codec by name or coder id string
func (r *Registry) Get(nameOrID string) (GeometryCodec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codec, ok := r.codecs[nameOrID]
	if !ok {
		return nil, ErrCodecNotFound
	}
	return codec, nil
}

// List returns all registered codecs (deduplicated)
func (r *Registry) List() []GeometryCodec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[GeometryCodec]bool)
	codecs := make([]GeometryCodec, 0)

	for _, codec := range r.codecs {
		if !seen[codec] {
			seen[codec] = true
			codecs = append(codecs, codec)
		}
	}

	return codecs
}
