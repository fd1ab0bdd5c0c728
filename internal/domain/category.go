package domain

// Built-in hazard categories.
const (
	CategorySchool     = "school"
	CategoryDemolition = "demolition"
	CategoryPothole    = "pothole"
)

const (
	unknownName           = "Unknown"
	addressNotAvailable   = "Address not available"
	unnamedSchool         = "Unnamed location"
	unnamedDemolitionSite = "Unnamed demolition site"
	potholeLabel          = "Pothole"
)

// CategoryDescriptor maps a category to the table columns that hold its
// display attributes and to the placeholders used when they are empty.
// An empty NameField means every record carries DefaultName.
type CategoryDescriptor struct {
	Category       string
	Label          string // human-readable, used in warning text
	NameField      string
	AddressField   string
	DefaultName    string
	DefaultAddress string
}

// Required returns the columns a table of this category must provide.
func (d CategoryDescriptor) Required() []string {
	cols := []string{"latitude", "longitude"}
	if d.NameField != "" {
		cols = append(cols, d.NameField)
	}
	if d.AddressField != "" {
		cols = append(cols, d.AddressField)
	}
	return cols
}

// DisplayName returns the record's name, or the placeholder when it has none.
func (d CategoryDescriptor) DisplayName(p HazardPoint) string {
	if d.NameField == "" || p.Name == "" {
		return d.DefaultName
	}
	return p.Name
}

// DisplayAddress returns the record's address, or the placeholder when it has none.
func (d CategoryDescriptor) DisplayAddress(p HazardPoint) string {
	if p.Address == "" {
		return d.DefaultAddress
	}
	return p.Address
}

// Registry is an ordered set of category descriptors.
type Registry struct {
	order []string
	byKey map[string]CategoryDescriptor
}

// NewRegistry creates a registry; later descriptors replace earlier ones with the same category.
func NewRegistry(descriptors ...CategoryDescriptor) *Registry {
	r := &Registry{byKey: make(map[string]CategoryDescriptor, len(descriptors))}
	for _, d := range descriptors {
		r.Register(d)
	}
	return r
}

// DefaultRegistry returns the school, demolition and pothole descriptors, in that order.
func DefaultRegistry() *Registry {
	return NewRegistry(
		CategoryDescriptor{
			Category:       CategorySchool,
			Label:          "school construction",
			NameField:      "school_name",
			AddressField:   "building_address",
			DefaultName:    unnamedSchool,
			DefaultAddress: addressNotAvailable,
		},
		CategoryDescriptor{
			Category:       CategoryDemolition,
			Label:          "demolition",
			NameField:      "account_name",
			AddressField:   "address",
			DefaultName:    unnamedDemolitionSite,
			DefaultAddress: addressNotAvailable,
		},
		CategoryDescriptor{
			Category:       CategoryPothole,
			Label:          "pothole",
			AddressField:   "incident_address",
			DefaultName:    potholeLabel,
			DefaultAddress: addressNotAvailable,
		},
	)
}

// Register adds or replaces a descriptor, keeping the original position on replace.
func (r *Registry) Register(d CategoryDescriptor) {
	if d.DefaultName == "" {
		d.DefaultName = unknownName
	}
	if d.DefaultAddress == "" {
		d.DefaultAddress = addressNotAvailable
	}
	if d.Label == "" {
		d.Label = d.Category
	}
	if _, ok := r.byKey[d.Category]; !ok {
		r.order = append(r.order, d.Category)
	}
	r.byKey[d.Category] = d
}

// Lookup returns the descriptor for category. Unknown categories get a generic
// descriptor and false.
func (r *Registry) Lookup(category string) (CategoryDescriptor, bool) {
	if r != nil {
		if d, ok := r.byKey[category]; ok {
			return d, true
		}
	}
	return CategoryDescriptor{
		Category:       category,
		Label:          category,
		NameField:      "name",
		AddressField:   "address",
		DefaultName:    unknownName,
		DefaultAddress: addressNotAvailable,
	}, false
}

// Categories returns the registered categories in registration order.
func (r *Registry) Categories() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Descriptors returns the registered descriptors in registration order.
func (r *Registry) Descriptors() []CategoryDescriptor {
	out := make([]CategoryDescriptor, 0, len(r.order))
	for _, c := range r.order {
		out = append(out, r.byKey[c])
	}
	return out
}
