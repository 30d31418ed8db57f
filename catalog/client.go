package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	inHttp "github.com/alfikri/estore-bff/internal/common/http"
	"github.com/alfikri/estore-bff/internal/config"
	"github.com/alfikri/estore-bff/internal/log"
	"github.com/alfikri/estore-bff/internal/otel"
)

// Client queries the catalog offerings endpoint. Calls are wrapped in a
// circuit breaker so a struggling catalog upstream sheds load fast instead of
// holding every cart request until timeout.
type Client struct {
	baseUrl string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[Offerings]
}

func NewClient(cfg config.Catalog) *Client {
	return &Client{
		baseUrl: strings.TrimSuffix(cfg.BaseUrl, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		},
		breaker: gobreaker.NewCircuitBreaker[Offerings](gobreaker.Settings{Name: "catalog"}),
	}
}

// OfferingsByPriceIds fetches the offerings snapshot for priceIds in the store
// identified by storeKey. An empty id set returns an empty snapshot without a
// network call.
func (cl *Client) OfferingsByPriceIds(
	c context.Context,
	storeKey string,
	priceIds []string,
) (Offerings, error) {
	c, span := otel.Tracer.Start(c, "CatalogClient OfferingsByPriceIds")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CatalogClient OfferingsByPriceIds").
		Str(log.KeyStoreKey, storeKey).
		Strs("priceIds", priceIds).
		Logger()

	if len(priceIds) == 0 {
		logger.Info().Msg("no priceIds, returning empty offerings")
		return Offerings{}, nil
	}

	params := url.Values{}
	params.Set("filter[externalKey]", storeKey)
	params.Set("filter[priceIds]", strings.Join(priceIds, ","))
	requestUrl := fmt.Sprintf("%s/offerings/?%s", cl.baseUrl, params.Encode())

	logger = logger.With().Str(log.KeyProcess, "fetching offerings").Logger()
	logger.Info().Msgf("fetching offerings from %s", requestUrl)
	offerings, err := cl.breaker.Execute(func() (Offerings, error) {
		req, err := http.NewRequestWithContext(c, http.MethodGet, requestUrl, nil)
		if err != nil {
			return Offerings{}, fmt.Errorf("failed creating offerings request with error=%w", err)
		}
		req.Header.Add(inHttp.KeyHeaderRequestId, log.RequestIDFromContext(c))

		resp, err := cl.http.Do(req)
		if err != nil {
			return Offerings{}, fmt.Errorf("failed fetching offerings with error=%w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return Offerings{}, fmt.Errorf(
				"catalog returned status code=%d for priceIds=%s",
				resp.StatusCode,
				strings.Join(priceIds, ","),
			)
		}

		decoded := Offerings{}
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return Offerings{}, fmt.Errorf("failed decoding offerings with error=%w", err)
		}
		return decoded, nil
	})
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Offerings{}, err
	}
	logger.Info().Msgf("fetched %d offerings", len(offerings.Data))

	return offerings, nil
}
