package portals

// Kind distinguishes how a portal exposes its listings.
type Kind string

const (
	// KindHTML portals are scraped from search result pages with CSS selectors.
	KindHTML Kind = "html"
	// KindFeed portals publish an RSS/Atom feed of new listings, common on
	// small broker sites running off-the-shelf CMSes.
	KindFeed Kind = "feed"
)

// Config describes one portal template: where to find listings and how to
// map the portal's markup into the raw capture payload shape.
type Config struct {
	Name     string    `yaml:"-"` // derived from filename
	Portal   Info      `yaml:"portal"`
	Settings Settings  `yaml:"settings"`
	Selector Selectors `yaml:"selectors"`
	// Neighborhoods is the allow-list; candidates outside it are skipped.
	// Matching is case- and diacritic-insensitive.
	Neighborhoods []string `yaml:"neighborhoods"`
	Seeds         []Seed   `yaml:"seeds"`
}

type Info struct {
	Title   string `yaml:"title"`
	BaseURL string `yaml:"base_url"`
	Kind    Kind   `yaml:"kind"`
}

type Settings struct {
	Enabled bool `yaml:"enabled"`
	Timeout int  `yaml:"timeout"` // seconds
	// DetailDescription fetches the listing's own page to recover a
	// description when the search-result selector yields nothing.
	DetailDescription bool `yaml:"detail_description"`
}

// Selectors maps portal markup to payload fields. Only used by html portals.
type Selectors struct {
	Item         string `yaml:"item"`
	Title        string `yaml:"title"`
	Price        string `yaml:"price"`
	Area         string `yaml:"area"`
	Bedrooms     string `yaml:"bedrooms"`
	Bathrooms    string `yaml:"bathrooms"`
	Link         string `yaml:"link"`
	Image        string `yaml:"image"`
	Location     string `yaml:"location"`
	Description  string `yaml:"description"`
	PropertyType string `yaml:"property_type"`
}

// Seed is a search page registered into the link registry.
type Seed struct {
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
}
