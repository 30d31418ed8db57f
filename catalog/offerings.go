package catalog

import (
	"github.com/shopspring/decimal"
)

const (
	OfferingTypePerpetual               = "PERPETUAL"
	OfferingTypeBicSubscription         = "BIC_SUBSCRIPTION"
	OfferingTypeMetaSubscription        = "META_SUBSCRIPTION"
	OfferingTypeMaintenanceSubscription = "MAINTENANCE_SUBSCRIPTION"
)

const (
	linkedTypePrice          = "price"
	linkedTypeOfferingDetail = "offeringDetail"
	linkedTypeBillingPlan    = "billingPlan"
)

// Offerings is the catalog snapshot returned for a set of price ids. Data
// holds the offerings themselves, Included the linked price, offeringDetail
// and billingPlan records they reference.
type Offerings struct {
	Data     []Offering `json:"data"`
	Included []Linked   `json:"included"`
}

type Offering struct {
	Id           string      `json:"id"`
	ExternalKey  string      `json:"externalKey"`
	OfferingType string      `json:"offeringType"`
	ProductLine  string      `json:"productLine"`
	MediaType    string      `json:"mediaType"`
	Descriptors  Descriptors `json:"descriptors"`
	Links        Links       `json:"links"`
}

type Linked struct {
	Type               string          `json:"type"`
	Id                 string          `json:"id"`
	Amount             decimal.Decimal `json:"amount"`
	Name               string          `json:"name"`
	ExternalKey        string          `json:"externalKey"`
	TaxCode            string          `json:"taxCode"`
	BillingPeriod      string          `json:"billingPeriod"`
	BillingPeriodCount int             `json:"billingPeriodCount"`
	Descriptors        Descriptors     `json:"descriptors"`
	Links              Links           `json:"links"`
}

type Links struct {
	Prices         *Linkages `json:"prices,omitempty"`
	BillingPlans   *Linkages `json:"billingPlans,omitempty"`
	OfferingDetail *Link     `json:"offeringDetail,omitempty"`
}

type Linkages struct {
	Linkage []Linkage `json:"linkage"`
}

type Link struct {
	Linkage Linkage `json:"linkage"`
}

type Linkage struct {
	Type string `json:"type"`
	Id   string `json:"id"`
}

type Descriptors struct {
	ImageUrl string            `json:"imageUrl,omitempty"`
	Estore   EstoreDescriptors `json:"estore,omitempty"`
}

// EstoreDescriptors carries the storefront presentation fields merged into a
// line item from the offering and its billing plan.
type EstoreDescriptors struct {
	ProductName1   string `json:"productName1,omitempty"`
	ProductName2   string `json:"productName2,omitempty"`
	MiniCartName1  string `json:"miniCartName1,omitempty"`
	MiniCartName2  string `json:"miniCartName2,omitempty"`
	DeliveryMethod string `json:"deliveryMethod,omitempty"`
	Year           string `json:"year,omitempty"`
	PlanType       string `json:"planType,omitempty"`
	SortOrder      *int   `json:"sortOrder,omitempty"`
}

func containsPriceId(links Links, priceId string) bool {
	return links.Prices != nil &&
		len(links.Prices.Linkage) > 0 &&
		links.Prices.Linkage[0].Id == priceId
}

// FindOfferingByPriceId resolves the offering that links to priceId, either
// directly through its prices linkage or through one of its billing plans.
func (o Offerings) FindOfferingByPriceId(priceId string) *Offering {
	if priceId == "" || len(o.Data) == 0 {
		return nil
	}
	for i := range o.Data {
		offering := &o.Data[i]
		if containsPriceId(offering.Links, priceId) {
			return offering
		}
		if offering.Links.BillingPlans == nil {
			continue
		}
		for _, linkage := range offering.Links.BillingPlans.Linkage {
			billingPlan := o.findLinked(linkedTypeBillingPlan, linkage.Id)
			if billingPlan != nil && containsPriceId(billingPlan.Links, priceId) {
				return offering
			}
		}
	}
	return nil
}

func (o Offerings) findLinked(linkedType, id string) *Linked {
	for i := range o.Included {
		if o.Included[i].Type == linkedType && o.Included[i].Id == id {
			return &o.Included[i]
		}
	}
	return nil
}

// Price returns the price amount linked to priceId.
func (o Offerings) Price(priceId string) (decimal.Decimal, bool) {
	price := o.findLinked(linkedTypePrice, priceId)
	if price == nil {
		return decimal.Decimal{}, false
	}
	return price.Amount, true
}

type OfferingDetail struct {
	Name        string `json:"name"`
	ExternalKey string `json:"externalKey"`
	TaxCode     string `json:"taxCode"`
}

// Detail returns the offeringDetail record linked from offering, or a zero
// detail when none is linked.
func (o Offerings) Detail(offering *Offering) OfferingDetail {
	if offering == nil || offering.Links.OfferingDetail == nil {
		return OfferingDetail{}
	}
	detail := o.findLinked(linkedTypeOfferingDetail, offering.Links.OfferingDetail.Linkage.Id)
	if detail == nil {
		return OfferingDetail{}
	}
	return OfferingDetail{
		Name:        detail.Name,
		ExternalKey: detail.ExternalKey,
		TaxCode:     detail.TaxCode,
	}
}

// BillingPlan returns the billing plan whose prices linkage contains priceId.
func (o Offerings) BillingPlan(priceId string) *Linked {
	for i := range o.Included {
		if o.Included[i].Type == linkedTypeBillingPlan &&
			containsPriceId(o.Included[i].Links, priceId) {
			return &o.Included[i]
		}
	}
	return nil
}
