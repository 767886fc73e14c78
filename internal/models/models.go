package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Base carries the identity and timestamps every stored record has,
// whichever backend produced it.
type Base struct {
	ID        string     `json:"_id" bson:"_id"`
	CreatedAt time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

func (b *Base) GetID() string { return b.ID }

func (b *Base) SetID(id string) { b.ID = id }

func (b *Base) Created() time.Time { return b.CreatedAt }

func (b *Base) Stamp(now time.Time) { b.CreatedAt = now }

func (b *Base) Touch(now time.Time) { b.UpdatedAt = &now }

func Bool(b bool) *bool { return &b }

// flagActive treats an absent isActive as true, matching the primary
// store's isActive != false filter.
func flagActive(v *bool) bool { return v == nil || *v }

type Plan struct {
	Base         `bson:",inline"`
	Name         string            `json:"name" bson:"name"`
	Price        string            `json:"price" bson:"price"`
	DeliveryTime string            `json:"deliveryTime" bson:"deliveryTime"`
	Features     Features          `json:"features" bson:"features"`
	IsActive     *bool             `json:"isActive" bson:"isActive"`
	MatrixValues map[string]string `json:"matrixValues,omitempty" bson:"matrixValues,omitempty"`
}

func (p *Plan) Defaults() {
	p.IsActive = Bool(true)
	p.Features = Features{}
}

// Settle fills in fields that records written before they existed lack.
func (p *Plan) Settle() {
	if p.IsActive == nil {
		p.IsActive = Bool(true)
	}
	if p.Features == nil {
		p.Features = Features{}
	}
}

func (p Plan) Active() bool { return flagActive(p.IsActive) }

func (p Plan) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.Price, validation.Required),
		validation.Field(&p.DeliveryTime, validation.Required),
	)
}

// Features is the ordered feature list of a plan. It accepts either a JSON
// array or the comma-separated string the admin form submits.
type Features []string

func (f *Features) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = cleanFeatures(list)
		return nil
	}
	var csv string
	if err := json.Unmarshal(data, &csv); err != nil {
		return fmt.Errorf("features must be a list or a comma-separated string")
	}
	*f = cleanFeatures(strings.Split(csv, ","))
	return nil
}

func cleanFeatures(in []string) Features {
	out := make(Features, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type PortfolioItem struct {
	Base        `bson:",inline"`
	Title       string `json:"title" bson:"title"`
	Description string `json:"description" bson:"description"`
	ImageURL    string `json:"imageUrl" bson:"imageUrl"`
	ProjectURL  string `json:"projectUrl,omitempty" bson:"projectUrl,omitempty"`
	Category    string `json:"category,omitempty" bson:"category,omitempty"`
}

func (p *PortfolioItem) Defaults() {}

// NormalizePatch maps the admin form's "link" field onto projectUrl.
func (p *PortfolioItem) NormalizePatch(patch map[string]json.RawMessage) {
	if link, ok := patch["link"]; ok {
		if _, set := patch["projectUrl"]; !set {
			patch["projectUrl"] = link
		}
		delete(patch, "link")
	}
}

func (p PortfolioItem) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.Required),
		validation.Field(&p.Description, validation.Required),
		validation.Field(&p.ImageURL, validation.Required),
	)
}

type Socials struct {
	LinkedIn string `json:"linkedin,omitempty" bson:"linkedin,omitempty"`
	Twitter  string `json:"twitter,omitempty" bson:"twitter,omitempty"`
	GitHub   string `json:"github,omitempty" bson:"github,omitempty"`
}

type TeamMember struct {
	Base    `bson:",inline"`
	Name    string  `json:"name" bson:"name"`
	Role    string  `json:"role" bson:"role"`
	Image   string  `json:"image" bson:"image"`
	Bio     string  `json:"bio,omitempty" bson:"bio,omitempty"`
	Socials Socials `json:"socials" bson:"socials"`
}

func (t *TeamMember) Defaults() {}

func (t TeamMember) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Name, validation.Required),
		validation.Field(&t.Role, validation.Required),
		validation.Field(&t.Image, validation.Required),
	)
}

type Testimonial struct {
	Base       `bson:",inline"`
	ClientName string `json:"clientName" bson:"clientName"`
	ClientRole string `json:"clientRole,omitempty" bson:"clientRole,omitempty"`
	Message    string `json:"message" bson:"message"`
	ImageURL   string `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
}

func (t *Testimonial) Defaults() {}

func (t Testimonial) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.ClientName, validation.Required),
		validation.Field(&t.Message, validation.Required),
	)
}

type Offer struct {
	Base               `bson:",inline"`
	Title              string   `json:"title" bson:"title"`
	Description        string   `json:"description,omitempty" bson:"description,omitempty"`
	DiscountPercentage *float64 `json:"discountPercentage,omitempty" bson:"discountPercentage,omitempty"`
	IsActive           *bool    `json:"isActive" bson:"isActive"`
}

// New offers start hidden; stored offers without the flag are active.
func (o *Offer) Defaults() { o.IsActive = Bool(false) }

func (o *Offer) Settle() {
	if o.IsActive == nil {
		o.IsActive = Bool(true)
	}
}

func (o Offer) Active() bool { return flagActive(o.IsActive) }

func (o Offer) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Title, validation.Required),
		validation.Field(&o.DiscountPercentage, validation.Min(float64(0)), validation.Max(float64(100))),
	)
}

const LeadStatusNew = "New"

// Lead is a contact-form submission. Only Status changes after creation.
type Lead struct {
	Base    `bson:",inline"`
	Name    string `json:"name" bson:"name"`
	Email   string `json:"email" bson:"email"`
	Phone   string `json:"phone,omitempty" bson:"phone,omitempty"`
	Message string `json:"message" bson:"message"`
	Status  string `json:"status" bson:"status"`
}

func (l *Lead) Defaults() { l.Status = LeadStatusNew }

func (l *Lead) Settle() {
	if l.Status == "" {
		l.Status = LeadStatusNew
	}
}

func (l Lead) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Name, validation.Required),
		validation.Field(&l.Email, validation.Required, is.EmailFormat),
		validation.Field(&l.Message, validation.Required),
		validation.Field(&l.Status, validation.Required),
	)
}

// Admin is a row of the local credential store.
type Admin struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"` // bcrypt hash
	CreatedAt time.Time `json:"createdAt"`
}
