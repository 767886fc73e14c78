// Package content wires one repository per collection of the site.
package content

import (
	"context"
	"fmt"

	"github.com/websitelelo/websitelelo/internal/filestore"
	"github.com/websitelelo/websitelelo/internal/models"
	"github.com/websitelelo/websitelelo/internal/mongostore"
	"github.com/websitelelo/websitelelo/internal/repository"
)

const (
	Plans        = "plans"
	Portfolio    = "portfolio"
	Team         = "team"
	Testimonials = "testimonials"
	Offers       = "offers"
	Contacts     = "contacts"
)

type Catalog struct {
	Plans        *repository.Repository[models.Plan, *models.Plan]
	Portfolio    *repository.Repository[models.PortfolioItem, *models.PortfolioItem]
	Team         *repository.Repository[models.TeamMember, *models.TeamMember]
	Testimonials *repository.Repository[models.Testimonial, *models.Testimonial]
	Offers       *repository.Repository[models.Offer, *models.Offer]
	Leads        *repository.Repository[models.Lead, *models.Lead]

	health repository.HealthChecker
}

type Options struct {
	Files    *filestore.Store
	IDs      repository.IDGenerator
	Recorder repository.FallbackRecorder
}

// Primaries is the primary store of every collection. A nil field puts that
// collection on the file store only.
type Primaries struct {
	Health       repository.HealthChecker
	Plans        repository.Primary[models.Plan]
	Portfolio    repository.Primary[models.PortfolioItem]
	Team         repository.Primary[models.TeamMember]
	Testimonials repository.Primary[models.Testimonial]
	Offers       repository.Primary[models.Offer]
	Leads        repository.Primary[models.Lead]
}

// MongoPrimaries binds every collection to client. A nil client means
// there is no database configured.
func MongoPrimaries(client *mongostore.Client) Primaries {
	if client == nil {
		return Primaries{Health: repository.Offline}
	}
	return Primaries{
		Health:       client,
		Plans:        mongostore.NewCollection[models.Plan](client, Plans),
		Portfolio:    mongostore.NewCollection[models.PortfolioItem](client, Portfolio),
		Team:         mongostore.NewCollection[models.TeamMember](client, Team),
		Testimonials: mongostore.NewCollection[models.Testimonial](client, Testimonials),
		Offers:       mongostore.NewCollection[models.Offer](client, Offers),
		Leads:        mongostore.NewCollection[models.Lead](client, Contacts),
	}
}

func NewCatalog(p Primaries, opts Options) *Catalog {
	if p.Health == nil {
		p.Health = repository.Offline
	}
	base := func(descending bool) repository.Options {
		return repository.Options{
			Health:     p.Health,
			Files:      opts.Files,
			IDs:        opts.IDs,
			Descending: descending,
			Recorder:   opts.Recorder,
		}
	}

	return &Catalog{
		Plans:        repository.New[models.Plan](Plans, p.Plans, base(false)),
		Portfolio:    repository.New[models.PortfolioItem](Portfolio, p.Portfolio, base(true)),
		Team:         repository.New[models.TeamMember](Team, p.Team, base(false)),
		Testimonials: repository.New[models.Testimonial](Testimonials, p.Testimonials, base(true)),
		Offers:       repository.New[models.Offer](Offers, p.Offers, base(false)),
		Leads:        repository.New[models.Lead](Contacts, p.Leads, base(true)),
		health:       p.Health,
	}
}

func (c *Catalog) Connected() bool { return c.health.Connected() }

// Stats is the admin dashboard summary.
type Stats struct {
	Plans        int           `json:"plans"`
	Portfolio    int           `json:"portfolio"`
	Team         int           `json:"team"`
	Testimonials int           `json:"testimonials"`
	Offers       int           `json:"offers"`
	Leads        int           `json:"leads"`
	NewLeads     int           `json:"newLeads"`
	RecentLeads  []models.Lead `json:"recentLeads"`
	Database     string        `json:"database"`
}

const recentLeadCount = 5

func (c *Catalog) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Database: "offline"}
	if c.Connected() {
		stats.Database = "connected"
	}

	counts := []struct {
		dst   *int
		count func(context.Context) (int, error)
	}{
		{&stats.Plans, c.Plans.Count},
		{&stats.Portfolio, c.Portfolio.Count},
		{&stats.Team, c.Team.Count},
		{&stats.Testimonials, c.Testimonials.Count},
		{&stats.Offers, c.Offers.Count},
	}
	for _, cnt := range counts {
		n, err := cnt.count(ctx)
		if err != nil {
			return nil, err
		}
		*cnt.dst = n
	}

	// leads come newest first
	leads, err := c.Leads.List(ctx, repository.ListOptions{})
	if err != nil {
		return nil, err
	}
	stats.Leads = len(leads)
	for _, l := range leads {
		if l.Status == models.LeadStatusNew {
			stats.NewLeads++
		}
	}
	if len(leads) > recentLeadCount {
		leads = leads[:recentLeadCount]
	}
	stats.RecentLeads = leads
	return stats, nil
}

// ImportLocal moves every collection's file-store records into the primary.
func (c *Catalog) ImportLocal(ctx context.Context, clearFiles bool) (map[string]int, error) {
	imports := []struct {
		name string
		run  func(context.Context, bool) (int, error)
	}{
		{Plans, c.Plans.ImportLocal},
		{Portfolio, c.Portfolio.ImportLocal},
		{Team, c.Team.ImportLocal},
		{Testimonials, c.Testimonials.ImportLocal},
		{Offers, c.Offers.ImportLocal},
		{Contacts, c.Leads.ImportLocal},
	}

	result := make(map[string]int, len(imports))
	for _, imp := range imports {
		n, err := imp.run(ctx, clearFiles)
		if err != nil {
			return result, fmt.Errorf("import %s: %w", imp.name, err)
		}
		result[imp.name] = n
	}
	return result, nil
}
