package routes

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tobbedansen/intake"
	"tobbedansen/middlewares"
	"tobbedansen/models"
	"tobbedansen/utils"
)

const maxRegistrationBody = 64 << 10

// Deps are the collaborators the handlers need; main wires the real ones,
// tests wire mocks.
type Deps struct {
	Events      models.EventRepository
	VesselTypes models.VesselTypeRepository
	Admins      models.AdminRepository
	Intake      *intake.Service
	Tokens      *utils.Tokens
	Invalidator *utils.CacheInvalidator
	Location    *time.Location   // zone the festival year is read in
	Now         func() time.Time // defaults to time.Now
}

// Limits configures abuse protection.
type Limits struct {
	GlobalRPS   float64
	GlobalBurst int
	SubmitRPS   float64
	SubmitBurst int
	// SubmissionQuota caps registrations per client IP per day.
	SubmissionQuota int
}

func DefaultLimits(quota int) Limits {
	return Limits{
		GlobalRPS:       20,
		GlobalBurst:     40,
		SubmitRPS:       0.5,
		SubmitBurst:     3,
		SubmissionQuota: quota,
	}
}

type deps struct{ Deps }

// RegisterRoutes mounts the API on server. The returned func stops the
// rate limiters' background cleanup.
func RegisterRoutes(server *gin.Engine, in Deps, rdb *redis.Client, limits Limits) (stop func()) {
	if in.Now == nil {
		in.Now = time.Now
	}
	if in.Location == nil {
		in.Location = time.Local
	}
	d := &deps{in}

	globalLimiter := middlewares.NewRateLimiter(middlewares.LimiterConfig{
		RPS:     limits.GlobalRPS,
		Burst:   limits.GlobalBurst,
		IdleTTL: 3 * time.Minute,
	})
	server.Use(globalLimiter.Middleware(func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	}))

	// registration and login use the stricter limits, each with its own per-IP key
	submitLimiter := middlewares.NewRateLimiter(middlewares.LimiterConfig{
		RPS:     limits.SubmitRPS,
		Burst:   limits.SubmitBurst,
		IdleTTL: 10 * time.Minute,
	})

	api := server.Group("/api")

	// Public
	api.GET("/event/current", d.getCurrentEvent)
	api.GET("/vessel-types", d.getVesselTypes)
	api.POST("/registration",
		submitLimiter.Middleware(func(c *gin.Context) string { return "registration:" + c.ClientIP() }),
		middlewares.Quota(rdb, middlewares.QuotaRule{
			Limit:  limits.SubmissionQuota,
			Window: 24 * time.Hour,
			KeyFn: func(c *gin.Context) string {
				return "quota:registration:ip:" + c.ClientIP()
			},
		}),
		d.createRegistration,
	)
	api.GET("/registration", d.listRegistrations)

	// Admin
	api.POST("/admin/login",
		submitLimiter.Middleware(func(c *gin.Context) string { return "login:" + c.ClientIP() }),
		d.login,
	)
	admin := api.Group("/admin")
	admin.Use(middlewares.Authenticate(d.Tokens))
	admin.POST("/events", d.createEvent)
	admin.PUT("/events/:id/registration-start", d.setRegistrationStart)
	admin.POST("/vessel-types", d.createVesselType)

	return func() {
		globalLimiter.Close()
		submitLimiter.Close()
	}
}

/* -------------------- Events -------------------- */

// GET /api/event/current
func (d *deps) getCurrentEvent(c *gin.Context) {
	year := d.Now().In(d.Location).Year()
	event, err := d.Events.Current(c.Request.Context(), year)
	if err != nil {
		log.Printf("current event %d: %v", year, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not fetch event. Try again later."})
		return
	}
	// null when there is no event this year
	c.JSON(http.StatusOK, event)
}

// POST /api/admin/events
func (d *deps) createEvent(c *gin.Context) {
	var req struct {
		ID                    string     `json:"id"`
		Year                  int        `json:"year" binding:"required,gte=1900"`
		RegistrationStartDate *time.Time `json:"registration_start_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Could not parse request data."})
		return
	}

	event := models.Event{ID: req.ID, Year: req.Year, RegistrationStartDate: req.RegistrationStartDate}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if err := d.Events.Create(c.Request.Context(), &event); err != nil {
		log.Printf("create event %s: %v", event.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not create event. Try again later."})
		return
	}

	d.Invalidator.PurgeEvents(c.Request.Context())
	c.JSON(http.StatusCreated, gin.H{"message": "event created!", "event": event})
}

// PUT /api/admin/events/:id/registration-start
func (d *deps) setRegistrationStart(c *gin.Context) {
	var req struct {
		RegistrationStartDate *time.Time `json:"registration_start_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Could not parse request data."})
		return
	}

	id := c.Param("id")
	err := d.Events.SetRegistrationStart(c.Request.Context(), id, req.RegistrationStartDate)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Event not found."})
		return
	}
	if err != nil {
		log.Printf("set registration start %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not update event. Try again later."})
		return
	}

	d.Invalidator.PurgeEvents(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "Event updated successfully!"})
}

/* ------------------ Vessel types ----------------- */

// GET /api/vessel-types
func (d *deps) getVesselTypes(c *gin.Context) {
	types, err := d.VesselTypes.GetAll(c.Request.Context())
	if err != nil {
		log.Printf("vessel types: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not fetch vessel types. Try again later."})
		return
	}
	c.JSON(http.StatusOK, types)
}

// POST /api/admin/vessel-types
func (d *deps) createVesselType(c *gin.Context) {
	var req struct {
		ID   string `json:"id"`
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Could not parse request data."})
		return
	}

	vt := models.VesselType{ID: req.ID, Name: req.Name}
	if vt.ID == "" {
		vt.ID = uuid.NewString()
	}
	if err := d.VesselTypes.Create(c.Request.Context(), &vt); err != nil {
		log.Printf("create vessel type %s: %v", vt.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not create vessel type. Try again later."})
		return
	}

	d.Invalidator.PurgeVesselTypes(c.Request.Context())
	c.JSON(http.StatusCreated, gin.H{"message": "vessel type created!", "vesselType": vt})
}

/* --------------- Registrations ------------------ */

// POST /api/registration
//
// Error bodies are plain text so the registration form can show them as-is.
func (d *deps) createRegistration(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRegistrationBody))
	if err != nil {
		c.String(http.StatusBadRequest, "body: Could not read request body")
		return
	}

	reg, err := d.Intake.Submit(c.Request.Context(), body)
	var (
		verr    *intake.ValidationError
		unknown *models.UnknownReferenceError
	)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"id": reg.ID})
	case errors.As(err, &verr):
		c.String(http.StatusBadRequest, verr.Error())
	case errors.Is(err, intake.ErrRegistrationClosed):
		c.String(http.StatusBadRequest, intake.DenialMessage)
	case errors.As(err, &unknown):
		c.String(http.StatusUnprocessableEntity, unknown.Error())
	default:
		c.String(http.StatusInternalServerError, intake.ApologyMessage)
	}
}

// GET /api/registration
func (d *deps) listRegistrations(c *gin.Context) {
	c.String(http.StatusNotImplemented, "Not implemented")
}

/* --------------------- Auth --------------------- */

// POST /api/admin/login
func (d *deps) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Could not parse request data."})
		return
	}

	admin, err := d.Admins.ValidateCredentials(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, models.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Could not authenticate admin."})
		return
	}
	if err != nil {
		log.Printf("login %s: %v", req.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not authenticate admin."})
		return
	}

	token, err := d.Tokens.Generate(admin.Email, admin.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not authenticate admin."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Login successful!", "token": token})
}
