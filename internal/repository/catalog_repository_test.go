package repository_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/nikolayk812/cartflow/internal/domain"
	"github.com/nikolayk812/cartflow/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type catalogRepositorySuite struct {
	suite.Suite

	repo *repository.CatalogRepository
	srv  *httptest.Server
	fake *fakeService
}

func TestCatalogRepositorySuite(t *testing.T) {
	suite.Run(t, new(catalogRepositorySuite))
}

func (suite *catalogRepositorySuite) SetupSuite() {
	suite.srv, suite.fake = startService()
	suite.repo = repository.NewCatalog(suite.srv.Client(), suite.srv.URL, time.Second)
}

func (suite *catalogRepositorySuite) TearDownSuite() {
	if suite.srv != nil {
		suite.srv.Close()
	}
}

func (suite *catalogRepositorySuite) SetupTest() {
	suite.fake.reset()
}

func (suite *catalogRepositorySuite) TestQueryProducts() {
	t := suite.T()
	ids := []uuid.UUID{uuid.MustParse(gofakeit.UUID()), uuid.MustParse(gofakeit.UUID())}

	suite.fake.handle(http.MethodPost, "/product/query", func(body []byte) (int, any) {
		var requested []uuid.UUID
		_ = json.Unmarshal(body, &requested)

		products := make([]map[string]any, 0, len(requested))
		for _, id := range requested {
			products = append(products, map[string]any{
				"productId":         id,
				"isPlainProduct":    true,
				"configurationType": "standalone",
			})
		}
		return http.StatusOK, products
	})

	got, err := suite.repo.QueryProducts(t.Context(), ids)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, ids[0], got[0].ProductID)
	assert.Equal(t, domain.Standalone, got[1].ConfigurationType)
	assert.True(t, got[1].IsPlainProduct)

	_, err = suite.repo.QueryProducts(t.Context(), nil)
	assert.EqualError(t, err, "productIDs is empty")
}

func (suite *catalogRepositorySuite) TestQueryPriceListItems() {
	priceListID := uuid.MustParse(gofakeit.UUID())
	productID := uuid.MustParse(gofakeit.UUID())
	path := "/pricelist/" + priceListID.String() + "/pricelistitems/query"

	tests := []struct {
		name        string
		priceListID uuid.UUID
		status      int
		wantLen     int
		wantError   string
		wantIs      error
	}{
		{
			name:        "query price list items: ok",
			priceListID: priceListID,
			status:      http.StatusOK,
			wantLen:     1,
		},
		{
			name:        "empty price list: error",
			priceListID: uuid.Nil,
			wantError:   "priceListID is empty",
		},
		{
			name:        "admin service unavailable: error",
			priceListID: priceListID,
			status:      http.StatusServiceUnavailable,
			wantIs:      repository.ErrUnexpectedStatus,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()
			suite.fake.handle(http.MethodPost, path, func(body []byte) (int, any) {
				var q struct {
					IDs []uuid.UUID `json:"ids"`
				}
				_ = json.Unmarshal(body, &q)
				assert.Equal(t, []uuid.UUID{productID}, q.IDs)

				return tt.status, []map[string]any{{
					"productId":   productID,
					"priceListId": priceListID,
					"price":       9.99,
					"currency":    "USD",
				}}
			})

			got, err := suite.repo.QueryPriceListItems(t.Context(), tt.priceListID, []uuid.UUID{productID})
			switch {
			case tt.wantError != "":
				require.EqualError(t, err, tt.wantError)
				return
			case tt.wantIs != nil:
				require.True(t, errors.Is(err, tt.wantIs), "got %v", err)
				return
			}
			require.NoError(t, err)

			require.Len(t, got, tt.wantLen)
			assert.Equal(t, "9.99", got[0].Price.String())
			assert.Equal(t, "USD", got[0].Currency)
		})
	}
}
