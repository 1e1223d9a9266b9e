// @title           Data Marketplace Ledger API
// @version         1.0
// @description     API for listing personal data, atomic purchases with fee split, and fee withdrawal

// @host      localhost:8080
// @BasePath  /api/v1

package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	appinterfaces "main/internal/application/interfaces"
	appledger "main/internal/application/service/ledger"
	appmarketplace "main/internal/application/service/marketplace"
	domainledger "main/internal/domain/entity/ledger"
	domain "main/internal/domain/entity/marketplace"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const (
	marketplaceBasePath = "/api/v1/marketplace"
	listingsBasePath    = "/api/v1/listings"
	accountsBasePath    = "/api/v1/accounts"

	actorHeader = "X-Actor-ID"
)

var (
	errMissingActor     = errors.New("X-Actor-ID header required")
	errInvalidListingID = errors.New("listing id must be an unsigned integer")
	errInvalidAccountID = errors.New("account id must be a UUID")
)

type Handler struct {
	router      *gin.Engine
	marketplace *appmarketplace.Service
	ledger      *appledger.Service
	cache       *redis.Client
	cacheTTL    time.Duration
}

var _ appinterfaces.HTTPHandler = (*Handler)(nil)

func NewHandler(mp *appmarketplace.Service, lg *appledger.Service, cache *redis.Client, cacheTTL time.Duration) *Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router:      router,
		marketplace: mp,
		ledger:      lg,
		cache:       cache,
		cacheTTL:    cacheTTL,
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	mp := h.router.Group(marketplaceBasePath)
	if h.cache != nil {
		mp.Use(h.cacheMiddleware())
	}
	{
		mp.POST("", h.initializeMarketplace)
		mp.GET("", h.getMarketplace)
		mp.POST("/withdrawals", h.withdrawFees)
	}

	listings := h.router.Group(listingsBasePath)
	if h.cache != nil {
		listings.Use(h.cacheMiddleware())
	}
	{
		listings.POST("", h.createListing)
		listings.GET("/:id", h.getListing)
		listings.PUT("/:id/price", h.updateListingPrice)
		listings.POST("/:id/purchase", h.purchaseListing)
		listings.POST("/:id/cancel", h.cancelListing)
	}

	accounts := h.router.Group(accountsBasePath)
	{
		accounts.POST("", h.openAccount)
		accounts.GET("/:id", h.getAccount)
	}
}

// Marketplace handlers

// initializeMarketplace creates the singleton marketplace
// @Summary      Initialize marketplace
// @Description  Create the marketplace with the caller as authority and the given fee rate
// @Tags         marketplace
// @Accept       json
// @Produce      json
// @Param        X-Actor-ID   header    string              true  "Authority identity (UUID)"
// @Param        marketplace  body      marketplacePayload  true  "Marketplace settings"
// @Success      201          {object}  domain.Marketplace
// @Failure      400          {object}  map[string]string
// @Failure      401          {object}  map[string]string
// @Failure      409          {object}  map[string]string
// @Router       /marketplace [post]
func (h *Handler) initializeMarketplace(c *gin.Context) {
	actor, err := parseActor(c)
	if err != nil {
		writeError(c, http.StatusUnauthorized, err)
		return
	}
	var payload marketplacePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	m, err := h.marketplace.InitializeMarketplace(c.Request.Context(), actor, payload.FeeBasisPoints)
	if err != nil {
		writeError(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// getMarketplace retrieves the marketplace state
// @Summary      Get marketplace
// @Description  Get the marketplace configuration and counters
// @Tags         marketplace
// @Produce      json
// @Success      200  {object}  domain.Marketplace
// @Failure      404  {object}  map[string]string
// @Router       /marketplace [get]
func (h *Handler) getMarketplace(c *gin.Context) {
	m, err := h.marketplace.GetMarketplace(c.Request.Context())
	if err != nil {
		writeError(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// withdrawFees moves collected fees to the authority
// @Summary      Withdraw fees
// @Description  Transfer collected fees from the marketplace account to the authority
// @Tags         marketplace
// @Accept       json
// @Produce      json
// @Param        X-Actor-ID  header  string           true  "Caller identity (UUID)"
// @Param        withdrawal  body    withdrawPayload  true  "Amount to withdraw"
// @Success      204         "No Content"
// @Failure      401         {object}  map[string]string
// @Failure      403         {object}  map[string]string
// @Failure      422         {object}  map[string]string
// @Router       /marketplace/withdrawals [post]
func (h *Handler) withdrawFees(c *gin.Context) {
	actor, err := parseActor(c)
	if err != nil {
		writeError(c, http.StatusUnauthorized, err)
		return
	}
	var payload withdrawPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.marketplace.WithdrawFees(c.Request.Context(), actor, payload.Amount); err != nil {
		writeError(c, statusOf(err), err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Listing handlers

// createListing creates a new data listing
// @Summary      Create listing
// @Description  List a data offering at a price; the caller becomes the owner
// @Tags         listings
// @Accept       json
// @Produce      json
// @Param        X-Actor-ID  header    string          true  "Owner identity (UUID)"
// @Param        listing     body      listingPayload  true  "Listing data"
// @Success      201         {object}  domain.DataListing
// @Failure      400         {object}  map[string]string
// @Failure      401         {object}  map[string]string
// @Failure      409         {object}  map[string]string
// @Router       /listings [post]
func (h *Handler) createListing(c *gin.Context) {
	actor, err := parseActor(c)
	if err != nil {
		writeError(c, http.StatusUnauthorized, err)
		return
	}
	var payload listingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	l, err := h.marketplace.CreateDataListing(c.Request.Context(), actor, payload.ID, payload.Price, payload.DataType, payload.CustomType, payload.Description)
	if err != nil {
		writeError(c, statusOf(err), err)
		return
	}
	h.invalidateCache(c.Request.Context(), marketplaceBasePath)
	c.JSON(http.StatusCreated, l)
}

// getListing retrieves a listing by id
// @Summary      Get listing
// @Description  Get a data listing by id
// @Tags         listings
// @Produce      json
// @Param        id   path      int  true  "Listing id"
// @Success      200  {object}  domain.DataListing
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /listings/{id} [get]
func (h *Handler) getListing(c *gin.Context) {
	id, err := parseListingID(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	l, err := h.marketplace.GetListing(c.Request.Context(), id)
	if err != nil {
		writeError(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// updateListingPrice changes the asking price of an active listing
// @Summary      Update listing price
// @Description  Set a new price on an active listing owned by the caller
// @Tags         listings
// @Accept       json
// @Produce      json
// @Param        X-Actor-ID  header    string        true  "Owner identity (UUID)"
// @Param        id          path      int           true  "Listing id"
// @Param        price       body      pricePayload  true  "New price"
// @Success      200         {object}  domain.DataListing
// @Failure      400         {object}  map[string]string
// @Failure      403         {object}  map[string]string
// @Failure      409         {object}  map[string]string
// @Router       /listings/{id}/price [put]
func (h *Handler) updateListingPrice(c *gin.Context) {
	actor, err := parseActor(c)
	if err != nil {
		writeError(c, http.StatusUnauthorized, err)
		return
	}
	id, err := parseListingID(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	var payload pricePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	l, err := h.marketplace.UpdateListingPrice(c.Request.Context(), actor, id, payload.Price)
	if err != nil {
		writeError(c, statusOf(err), err)
		return
	}
	h.invalidateCache(c.Request.Context(), listingPath(id))
	c.JSON(http.StatusOK, l)
}

// purchaseListing buys an active listing
// @Summary      Purchase listing
// @Description  Buy an active listing; proceeds go to the owner and the fee to the marketplace, atomically
// @Tags         listings
// @Produce      json
// @Param        X-Actor-ID  header    string  true  "Buyer identity (UUID)"
// @Param        id          path      int     true  "Listing id"
// @Success      200         {object}  domain.DataListing
// @Failure      401         {object}  map[string]string
// @Failure      404         {object}  map[string]string
// @Failure      409         {object}  map[string]string
// @Failure      422         {object}  map[string]string
// @Router       /listings/{id}/purchase [post]
func (h *Handler) purchaseListing(c *gin.Context) {
	actor, err := parseActor(c)
	if err != nil {
		writeError(c, http.StatusUnauthorized, err)
		return
	}
	id, err := parseListingID(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	l, err := h.marketplace.PurchaseData(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, statusOf(err), err)
		return
	}
	h.invalidateCache(c.Request.Context(), listingPath(id), marketplaceBasePath)
	c.JSON(http.StatusOK, l)
}

// cancelListing deactivates an active listing
// @Summary      Cancel listing
// @Description  Move an active listing owned by the caller to the cancelled state
// @Tags         listings
// @Produce      json
// @Param        X-Actor-ID  header    string  true  "Owner identity (UUID)"
// @Param        id          path      int     true  "Listing id"
// @Success      200         {object}  domain.DataListing
// @Failure      403         {object}  map[string]string
// @Failure      404         {object}  map[string]string
// @Failure      409         {object}  map[string]string
// @Router       /listings/{id}/cancel [post]
func (h *Handler) cancelListing(c *gin.Context) {
	actor, err := parseActor(c)
	if err != nil {
		writeError(c, http.StatusUnauthorized, err)
		return
	}
	id, err := parseListingID(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	l, err := h.marketplace.CancelListing(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, statusOf(err), err)
		return
	}
	h.invalidateCache(c.Request.Context(), listingPath(id))
	c.JSON(http.StatusOK, l)
}

// Account handlers

// openAccount opens a ledger account for the caller
// @Summary      Open account
// @Description  Open a ledger account for the caller with an opening balance
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        X-Actor-ID  header    string          true  "Account holder identity (UUID)"
// @Param        account     body      accountPayload  true  "Opening balance"
// @Success      201         {object}  domainledger.Account
// @Failure      401         {object}  map[string]string
// @Failure      409         {object}  map[string]string
// @Router       /accounts [post]
func (h *Handler) openAccount(c *gin.Context) {
	actor, err := parseActor(c)
	if err != nil {
		writeError(c, http.StatusUnauthorized, err)
		return
	}
	var payload accountPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	a, err := h.ledger.OpenAccount(c.Request.Context(), actor, payload.OpeningBalance)
	if err != nil {
		writeError(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// getAccount retrieves an account by id
// @Summary      Get account
// @Description  Get a ledger account and its balance
// @Tags         accounts
// @Produce      json
// @Param        id   path      string  true  "Account id (UUID)"
// @Success      200  {object}  domainledger.Account
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /accounts/{id} [get]
func (h *Handler) getAccount(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, errInvalidAccountID)
		return
	}
	a, err := h.ledger.GetAccount(c.Request.Context(), id)
	if err != nil {
		writeError(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Helpers

type marketplacePayload struct {
	FeeBasisPoints uint16 `json:"fee_basis_points"`
}

type listingPayload struct {
	ID          uint64 `json:"id"`
	Price       uint64 `json:"price"`
	DataType    string `json:"data_type"`
	CustomType  string `json:"custom_type,omitempty"`
	Description string `json:"description"`
}

type pricePayload struct {
	Price uint64 `json:"price"`
}

type withdrawPayload struct {
	Amount uint64 `json:"amount"`
}

type accountPayload struct {
	OpeningBalance uint64 `json:"opening_balance"`
}

// parseActor reads the caller identity from the X-Actor-ID header. Identity
// is established by the gateway upstream; here it is only parsed.
func parseActor(c *gin.Context) (uuid.UUID, error) {
	value := c.GetHeader(actorHeader)
	if value == "" {
		return uuid.Nil, errMissingActor
	}
	actor, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s header: %w", actorHeader, err)
	}
	return actor, nil
}

func parseListingID(c *gin.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, errInvalidListingID
	}
	return id, nil
}

// statusOf maps domain errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domainledger.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domainledger.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyInitialized),
		errors.Is(err, domain.ErrDuplicateListing),
		errors.Is(err, domain.ErrListingNotActive),
		errors.Is(err, domainledger.ErrDuplicateAccount):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidListingID),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidFeeBasisPoints),
		errors.Is(err, domain.ErrInvalidDataType),
		errors.Is(err, domain.ErrMissingCustomType):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTransferFailed),
		errors.Is(err, domain.ErrArithmeticOverflow),
		errors.Is(err, domainledger.ErrInsufficientFunds),
		errors.Is(err, domainledger.ErrBalanceOverflow):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, status int, err error) {
	if err == nil {
		status = http.StatusInternalServerError
		err = errors.New("unknown error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// cacheMiddleware caches GET responses in Redis.
func (h *Handler) cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.cache == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := h.cacheKey(c)
		ctx := c.Request.Context()

		if cached, err := h.cache.Get(ctx, key).Result(); err == nil {
			c.Data(http.StatusOK, "application/json", []byte(cached))
			c.Abort()
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: c.Writer,
			status:         http.StatusOK,
			body:           &bytes.Buffer{},
		}
		c.Writer = recorder

		c.Next()

		if recorder.status >= 200 && recorder.status < 300 && recorder.body.Len() > 0 {
			_ = h.cache.Set(ctx, key, recorder.body.Bytes(), h.cacheTTL).Err()
		}
	}
}

type responseRecorder struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if len(data) > 0 {
		r.body.Write(data)
	}
	return r.ResponseWriter.Write(data)
}

func (h *Handler) cacheKey(c *gin.Context) string {
	return cacheKeyFor(c.Request.Method, c.Request.URL.Path, c.Request.URL.RawQuery)
}

func cacheKeyFor(method, path, rawQuery string) string {
	return fmt.Sprintf("cache:%s:%s?%s", method, path, rawQuery)
}

// invalidateCache drops the cached GET responses a mutation just made stale,
// so readers never see a sold or repriced listing as it was for a full TTL.
// The read endpoints touched here take no query params, so the exact key is
// known. Best effort, like the cache itself.
func (h *Handler) invalidateCache(ctx context.Context, paths ...string) {
	if h.cache == nil {
		return
	}
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		keys = append(keys, cacheKeyFor(http.MethodGet, p, ""))
	}
	_ = h.cache.Del(ctx, keys...).Err()
}

func listingPath(id uint64) string {
	return fmt.Sprintf("%s/%d", listingsBasePath, id)
}
