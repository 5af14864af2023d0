package availability

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/slotcal/internal/platform/fhir"
)

type Handler struct {
	catalog  *Catalog
	location *time.Location
}

// NewHandler serves catalog over HTTP. Dates in requests are read in loc.
func NewHandler(catalog *Catalog, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{catalog: catalog, location: loc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/availability")
	g.GET("/day/:date", h.GetDay)
	g.GET("/:year/:month", h.GetMonth)
	g.GET("/:year/:month/days", h.ListAvailableDays)
	g.POST("/reload", h.Reload)
}

type monthResponse struct {
	Year      int                  `json:"year"`
	Month     int                  `json:"month"`
	DatasetID string               `json:"datasetId"`
	Days      map[string]DayBucket `json:"days"`
	Stats     BuildStats           `json:"stats"`
}

type daysResponse struct {
	Year  int      `json:"year"`
	Month int      `json:"month"`
	Dates []string `json:"dates"`
}

type dayResponse struct {
	Date   string       `json:"date"`
	Groups []StartGroup `json:"groups"`
}

type reloadResponse struct {
	DatasetID     string    `json:"datasetId"`
	LoadedAt      time.Time `json:"loadedAt"`
	Practitioners int       `json:"practitionerRoles"`
	Schedules     int       `json:"schedules"`
	Slots         int       `json:"slots"`
}

func (h *Handler) GetMonth(c echo.Context) error {
	year, month, err := parseYearMonth(c.Param("year"), c.Param("month"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome(err.Error()))
	}
	idx, ds, err := h.catalog.Month(year, month)
	if err != nil {
		return catalogError(c, err)
	}
	return c.JSON(http.StatusOK, monthResponse{
		Year:      idx.Year,
		Month:     int(idx.Month),
		DatasetID: ds.ID.String(),
		Days:      idx.Days,
		Stats:     idx.Stats,
	})
}

// ListAvailableDays returns the sorted dates of a month that have at least
// one free slot, which is all a month grid needs.
func (h *Handler) ListAvailableDays(c echo.Context) error {
	year, month, err := parseYearMonth(c.Param("year"), c.Param("month"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome(err.Error()))
	}
	idx, _, err := h.catalog.Month(year, month)
	if err != nil {
		return catalogError(c, err)
	}
	dates := make([]string, 0, len(idx.Days))
	for d := range idx.Days {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return c.JSON(http.StatusOK, daysResponse{Year: year, Month: int(month), Dates: dates})
}

func (h *Handler) GetDay(c echo.Context) error {
	raw := c.Param("date")
	date, err := time.ParseInLocation(DateKeyLayout, raw, h.location)
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("date must be YYYY-MM-DD"))
	}
	groups, err := h.catalog.Day(date)
	if err != nil {
		return catalogError(c, err)
	}
	if groups == nil {
		groups = []StartGroup{}
	}
	return c.JSON(http.StatusOK, dayResponse{Date: raw, Groups: groups})
}

func (h *Handler) Reload(c echo.Context) error {
	ds, err := h.catalog.Reload(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, fhir.ErrorOutcome(err.Error()))
	}
	return c.JSON(http.StatusOK, reloadResponse{
		DatasetID:     ds.ID.String(),
		LoadedAt:      ds.LoadedAt,
		Practitioners: len(ds.Practitioners),
		Schedules:     len(ds.Schedules),
		Slots:         len(ds.Slots),
	})
}

func catalogError(c echo.Context, err error) error {
	if errors.Is(err, ErrNotLoaded) {
		return c.JSON(http.StatusServiceUnavailable, fhir.NewOperationOutcome("error", "transient", err.Error()))
	}
	return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
}

func parseYearMonth(y, m string) (int, time.Month, error) {
	year, err := strconv.Atoi(y)
	if err != nil || year < 1 || year > 9999 {
		return 0, 0, errors.New("year must be a number between 1 and 9999")
	}
	month, err := strconv.Atoi(m)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, errors.New("month must be a number between 1 and 12")
	}
	return year, time.Month(month), nil
}
