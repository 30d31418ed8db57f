package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	testRedis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/alfikri/estore-bff/cart/internal/store"
	"github.com/alfikri/estore-bff/catalog"
	"github.com/alfikri/estore-bff/internal/config"
)

func decimalFromString(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}

// catalogFixture covers every price id the tests reference. Unknown price ids
// simply resolve to no offering, which is exactly what the reconciliation
// engine expects from the real catalog.
func catalogFixture() catalog.Offerings {
	sortOrderFirst, sortOrderSecond, sortOrderThird := 1, 2, 3
	return catalog.Offerings{
		Data: []catalog.Offering{
			{
				Id:           "OFF-PERPETUAL",
				ExternalKey:  "sketchpad",
				OfferingType: catalog.OfferingTypePerpetual,
				ProductLine:  "SKETCHPAD",
				MediaType:    "DVD",
				Descriptors: catalog.Descriptors{
					Estore: catalog.EstoreDescriptors{
						ProductName1: "Sketchpad",
						SortOrder:    &sortOrderSecond,
					},
				},
				Links: catalog.Links{
					Prices: &catalog.Linkages{
						Linkage: []catalog.Linkage{{Type: "price", Id: "1001"}},
					},
					OfferingDetail: &catalog.Link{
						Linkage: catalog.Linkage{Type: "offeringDetail", Id: "DET-PERPETUAL"},
					},
				},
			},
			{
				Id:           "OFF-BIC",
				ExternalKey:  "sketchpad-sub",
				OfferingType: catalog.OfferingTypeBicSubscription,
				ProductLine:  "SKETCHPAD",
				Descriptors: catalog.Descriptors{
					Estore: catalog.EstoreDescriptors{
						ProductName1: "Sketchpad Subscription",
						SortOrder:    &sortOrderFirst,
					},
				},
				Links: catalog.Links{
					BillingPlans: &catalog.Linkages{
						Linkage: []catalog.Linkage{{Type: "billingPlan", Id: "BP-MONTHLY"}},
					},
				},
			},
			{
				Id:           "OFF-MAINTENANCE",
				ExternalKey:  "sketchpad-maintenance",
				OfferingType: catalog.OfferingTypeMaintenanceSubscription,
				ProductLine:  "SKETCHPAD",
				Descriptors: catalog.Descriptors{
					Estore: catalog.EstoreDescriptors{
						ProductName1: "Sketchpad Maintenance",
						SortOrder:    &sortOrderThird,
					},
				},
				Links: catalog.Links{
					Prices: &catalog.Linkages{
						Linkage: []catalog.Linkage{{Type: "price", Id: "3003"}},
					},
				},
			},
		},
		Included: []catalog.Linked{
			{Type: "price", Id: "1001", Amount: decimalFromString("99.99")},
			{Type: "price", Id: "2002", Amount: decimalFromString("9.99")},
			{Type: "price", Id: "3003", Amount: decimalFromString("19.99")},
			{
				Type:        "offeringDetail",
				Id:          "DET-PERPETUAL",
				Name:        "Sketchpad 2024",
				ExternalKey: "sketchpad",
				TaxCode:     "SW052000",
			},
			{
				Type:               "billingPlan",
				Id:                 "BP-MONTHLY",
				BillingPeriod:      "MONTH",
				BillingPeriodCount: 1,
				Descriptors: catalog.Descriptors{
					Estore: catalog.EstoreDescriptors{PlanType: "monthly"},
				},
				Links: catalog.Links{
					Prices: &catalog.Linkages{
						Linkage: []catalog.Linkage{{Type: "price", Id: "2002"}},
					},
				},
			},
		},
	}
}

func setupCartService(
	t *testing.T,
	c context.Context,
) (*redis.Client, *testRedis.RedisContainer, *httptest.Server, *store.Store, CartService) {
	redisContainer, err := testRedis.Run(c, "redis:7.4.2-alpine3.21")
	if err != nil {
		t.Fatalf("failed running redis container with error: %s", err)
	}

	redisConnStr, err := redisContainer.ConnectionString(c)
	if err != nil {
		t.Fatalf("failed getting redis connection string with error: %s", err)
	}

	redisOpt, err := redis.ParseURL(redisConnStr)
	if err != nil {
		t.Fatalf("failed parsing redis connection string with error: %s", err)
	}

	redisClient := redis.NewClient(redisOpt)
	if err = redisClient.Ping(c).Err(); err != nil {
		t.Fatalf("failed ping redis client with error: %s", err)
	}

	catalogServer := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(catalogFixture()); err != nil {
				t.Errorf("failed encoding offerings fixture with error: %s", err)
			}
		}),
	)

	cartStore := store.New(redisClient, time.Hour)
	catalogClient := catalog.NewClient(config.Catalog{
		BaseUrl: catalogServer.URL,
		Timeout: 10 * time.Second,
	})
	cartService := NewCartService(cartStore, catalogClient, config.Cart{MaxItemQuantity: 999})
	return redisClient, redisContainer, catalogServer, cartStore, cartService
}

func teardownCartService(
	t *testing.T,
	redisClient *redis.Client,
	redisContainer *testRedis.RedisContainer,
	catalogServer *httptest.Server,
) {
	catalogServer.Close()
	redisClient.Close()
	if err := testcontainers.TerminateContainer(redisContainer); err != nil {
		t.Fatalf("failed to terminate container: %s", err)
	}
}
