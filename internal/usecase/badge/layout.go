package badge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"gatehouse/internal/errs"
	"gatehouse/internal/ports"
)

// LayoutProfile describes how badge_data turns into printable lines. It is
// operator-editable TOML so badge tweaks don't need a deploy.
type LayoutProfile struct {
	Version int                  `toml:"version"`
	Header  LayoutHeader         `toml:"header"`
	Fields  []LayoutField        `toml:"fields"`
	Tiers   map[string]TierStyle `toml:"tiers"`
}

type LayoutHeader struct {
	Title string `toml:"title"`
}

type LayoutField struct {
	// Source is a badge_data key: attendee_name, tier, ticket_id, event_id.
	Source    string `toml:"source"`
	Label     string `toml:"label"`
	Uppercase bool   `toml:"uppercase"`
}

type TierStyle struct {
	Banner string `toml:"banner"`
}

func defaultLayout() LayoutProfile {
	return LayoutProfile{
		Version: 1,
		Header:  LayoutHeader{Title: "ATTENDEE"},
		Fields: []LayoutField{
			{Source: "attendee_name", Uppercase: true},
			{Source: "tier", Label: "Tier"},
			{Source: "ticket_id", Label: "Ticket"},
		},
		Tiers: map[string]TierStyle{
			"vip":     {Banner: "* VIP *"},
			"speaker": {Banner: "* SPEAKER *"},
		},
	}
}

func loadLayoutFile(path string) (LayoutProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return LayoutProfile{}, errs.Wrapf(err, "read layout file %q", path)
	}

	var profile LayoutProfile
	if err := toml.Unmarshal(raw, &profile); err != nil {
		return LayoutProfile{}, errs.Wrap(err, "parse layout file")
	}
	if len(profile.Fields) == 0 {
		return LayoutProfile{}, errors.New("layout must define at least one field")
	}
	return profile, nil
}

// LayoutProvider serves the current profile to the worker and supports hot
// reload; reads and reloads may race, hence the lock.
type LayoutProvider struct {
	path string

	mu      sync.RWMutex
	profile LayoutProfile
}

// NewLayoutProvider starts from the file when it exists, else the built-in
// default. An empty path disables file loading entirely.
func NewLayoutProvider(path string) *LayoutProvider {
	p := &LayoutProvider{
		path:    strings.TrimSpace(path),
		profile: defaultLayout(),
	}
	if p.path != "" {
		if profile, err := loadLayoutFile(p.path); err == nil {
			p.profile = profile
		}
	}
	return p
}

func (p *LayoutProvider) Current() LayoutProfile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.profile
}

// Reload re-reads the layout file; the previous profile stays active when the
// new one fails to parse.
func (p *LayoutProvider) Reload() error {
	if p.path == "" {
		return nil
	}

	profile, err := loadLayoutFile(p.path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.profile = profile
	p.mu.Unlock()
	return nil
}

func (p *LayoutProvider) Path() string {
	return p.path
}

// Render turns a job's badge_data into layout-ordered print lines.
func (p *LayoutProvider) Render(job ports.BadgePrintJob) (ports.RenderedBadge, error) {
	var data map[string]string
	if err := json.Unmarshal([]byte(job.BadgeData), &data); err != nil {
		return ports.RenderedBadge{}, errs.Wrap(err, "parse badge data")
	}

	profile := p.Current()

	lines := make([]string, 0, len(profile.Fields)+2)
	if profile.Header.Title != "" {
		lines = append(lines, profile.Header.Title)
	}
	if style, ok := profile.Tiers[data["tier"]]; ok && style.Banner != "" {
		lines = append(lines, style.Banner)
	}
	for _, field := range profile.Fields {
		value := data[field.Source]
		if value == "" {
			continue
		}
		if field.Uppercase {
			value = strings.ToUpper(value)
		}
		if field.Label != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", field.Label, value))
		} else {
			lines = append(lines, value)
		}
	}

	return ports.RenderedBadge{
		JobID:    job.ID,
		TicketID: job.TicketID,
		Lines:    lines,
	}, nil
}
