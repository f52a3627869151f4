package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classattend/internal/account"
	"classattend/internal/auth"
	"classattend/internal/config"
	"classattend/internal/httpmiddleware"
	"classattend/internal/metrics"
	"classattend/internal/report"
	"classattend/internal/roster"
	"classattend/internal/session"
	"classattend/internal/store"
)

// Server holds the services behind the HTTP surface.
type Server struct {
	cfg      config.App
	accounts *account.Service
	modules  *roster.Service
	sessions *session.Service
	reports  *report.Service
	db       *store.DB
	redis    *store.Redis
}

// New wires a server from its collaborators. redis may be nil.
func New(cfg config.App, accounts *account.Service, modules *roster.Service, sessions *session.Service, reports *report.Service, db *store.DB, redis *store.Redis) *Server {
	return &Server{
		cfg:      cfg,
		accounts: accounts,
		modules:  modules,
		sessions: sessions,
		reports:  reports,
		db:       db,
		redis:    redis,
	}
}

// Router builds the gin engine with the full middleware chain and
// route set.
func (s *Server) Router(limiter httpmiddleware.Limiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  s.cfg.CORSOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        24 * time.Hour,
	}))
	r.Use(securityHeaders())
	r.Use(observeRequests())
	if limiter != nil {
		r.Use(httpmiddleware.RateLimit(limiter))
	}
	r.Use(httpmiddleware.RequestTimeout(s.cfg.RequestTimeout))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.healthz)

	r.POST("/auth/:role/register", s.register)
	r.POST("/auth/:role/login", s.login)

	authed := r.Group("/", auth.RequireAuth(s.cfg.JWTSecret, s.cfg.JWTIssuer))
	lecturerOnly := auth.RequireRole(auth.RoleLecturer)
	studentOnly := auth.RequireRole(auth.RoleStudent)

	authed.POST("/modules", lecturerOnly, s.createModule)
	authed.POST("/modules/join", studentOnly, s.joinModule)
	authed.GET("/modules", s.listModules)
	authed.GET("/modules/:id", s.getModule)

	authed.POST("/sessions", lecturerOnly, s.createSession)
	authed.POST("/sessions/sign", studentOnly, s.signAttendance)
	authed.GET("/sessions", s.listSessions)

	authed.GET("/reports/module/:code", lecturerOnly, s.moduleReport)
	authed.GET("/reports/module/:code/export", lecturerOnly, s.exportModuleReport)
	authed.GET("/reports/student/:code", studentOnly, s.studentReport)

	return r
}

// fail maps domain errors onto the HTTP status taxonomy. Unknown
// errors log server-side and show a generic message.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, account.ErrEmailTaken),
		errors.Is(err, account.ErrRegNumberTaken),
		errors.Is(err, roster.ErrDuplicateCode),
		errors.Is(err, roster.ErrInvalidInviteCode),
		errors.Is(err, roster.ErrAlreadyRegistered),
		errors.Is(err, session.ErrInvalidDuration),
		errors.Is(err, session.ErrInvalidOrExpiredCode),
		errors.Is(err, session.ErrAlreadySigned):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	case errors.Is(err, account.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
	case errors.Is(err, session.ErrNotOwner),
		errors.Is(err, session.ErrNotRegistered),
		errors.Is(err, roster.ErrNotOwner),
		errors.Is(err, roster.ErrNotRegistered):
		c.JSON(http.StatusForbidden, gin.H{"message": err.Error()})
	case errors.Is(err, roster.ErrModuleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
	default:
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "server error"})
	}
}

func (s *Server) healthz(c *gin.Context) {
	dbHealthy := s.db != nil && s.db.SQL.PingContext(c.Request.Context()) == nil
	status := http.StatusOK
	if !dbHealthy {
		status = http.StatusServiceUnavailable
	}
	body := gin.H{"status": "ok", "db": dbHealthy}
	if s.redis != nil {
		body["redis"] = s.redis.Healthy(c.Request.Context())
	}
	c.JSON(status, body)
}

type studentRegisterRequest struct {
	RegNumber  string `json:"reg_number" binding:"required"`
	FullName   string `json:"full_name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	InviteCode string `json:"invite_code" binding:"required"`
}

type lecturerRegisterRequest struct {
	FullName  string `json:"full_name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	ClassYear string `json:"class_year" binding:"required"`
}

func (s *Server) register(c *gin.Context) {
	switch c.Param("role") {
	case auth.RoleStudent:
		var req studentRegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		u, err := s.accounts.RegisterStudent(c.Request.Context(), account.StudentSignup{
			RegNumber:  req.RegNumber,
			FullName:   req.FullName,
			Email:      req.Email,
			Password:   req.Password,
			InviteCode: req.InviteCode,
		})
		if err != nil {
			s.fail(c, err)
			return
		}
		s.issueToken(c, http.StatusCreated, u)
	case auth.RoleLecturer:
		var req lecturerRegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		u, err := s.accounts.RegisterLecturer(c.Request.Context(), account.LecturerSignup{
			FullName:  req.FullName,
			Email:     req.Email,
			Password:  req.Password,
			ClassYear: req.ClassYear,
		})
		if err != nil {
			s.fail(c, err)
			return
		}
		s.issueToken(c, http.StatusCreated, u)
	default:
		c.JSON(http.StatusNotFound, gin.H{"message": "unknown role"})
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	role := c.Param("role")
	if role != auth.RoleStudent && role != auth.RoleLecturer {
		c.JSON(http.StatusNotFound, gin.H{"message": "unknown role"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	u, err := s.accounts.Login(c.Request.Context(), req.Email, req.Password, role)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.issueToken(c, http.StatusOK, u)
}

func (s *Server) issueToken(c *gin.Context, status int, u *account.User) {
	token, exp, err := auth.Issue(u.ID, u.Role, u.FullName, s.cfg.JWTIssuer, s.cfg.JWTSecret, s.cfg.TokenTTL)
	if err != nil {
		s.fail(c, fmt.Errorf("issue token: %w", err))
		return
	}
	c.JSON(status, gin.H{"token": token, "role": u.Role, "expires_at": exp.Unix()})
}

type createModuleRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

func (s *Server) createModule(c *gin.Context) {
	var req createModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	m, err := s.modules.CreateModule(c.Request.Context(), req.Code, req.Name, auth.Identity(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"module": m})
}

type joinModuleRequest struct {
	InviteCode string `json:"invite_code" binding:"required"`
}

func (s *Server) joinModule(c *gin.Context) {
	var req joinModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	m, err := s.modules.JoinModule(c.Request.Context(), req.InviteCode, auth.Identity(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"module": m})
}

func (s *Server) listModules(c *gin.Context) {
	id := auth.Identity(c)
	modules, err := s.modules.ListModules(c.Request.Context(), id.ID, id.Role)
	if err != nil {
		s.fail(c, err)
		return
	}
	if modules == nil {
		modules = []roster.Module{}
	}
	c.JSON(http.StatusOK, gin.H{"modules": modules})
}

func (s *Server) getModule(c *gin.Context) {
	id := auth.Identity(c)
	m, err := s.modules.GetModule(c.Request.Context(), c.Param("id"), id.ID, id.Role)
	if err != nil {
		s.fail(c, err)
		return
	}

	body := gin.H{"module": m}
	if id.Role == auth.RoleLecturer {
		count, err := s.modules.StudentCount(c.Request.Context(), m.ID)
		if err != nil {
			s.fail(c, err)
			return
		}
		active, err := s.sessions.ActiveSession(c.Request.Context(), m.ID)
		if err != nil {
			s.fail(c, err)
			return
		}
		body["student_count"] = count
		body["active_session"] = active
	}
	c.JSON(http.StatusOK, body)
}

type createSessionRequest struct {
	ModuleID        string `json:"module_id" binding:"required"`
	DurationMinutes int    `json:"duration_minutes" binding:"required"`
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	sc, err := s.sessions.CreateSession(c.Request.Context(), req.ModuleID, auth.Identity(c).ID, req.DurationMinutes)
	if err != nil {
		s.fail(c, err)
		return
	}
	metrics.SessionCodesIssued.Inc()
	c.JSON(http.StatusCreated, gin.H{"session": sc})
}

type signRequest struct {
	SessionCode string `json:"session_code" binding:"required"`
}

func (s *Server) signAttendance(c *gin.Context) {
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	rec, err := s.sessions.SignAttendance(c.Request.Context(), req.SessionCode, auth.Identity(c).ID)
	if err != nil {
		metrics.SignAttempts.WithLabelValues(signResult(err)).Inc()
		s.fail(c, err)
		return
	}
	metrics.SignAttempts.WithLabelValues("ok").Inc()
	c.JSON(http.StatusCreated, gin.H{"attendance": rec})
}

func signResult(err error) string {
	switch {
	case errors.Is(err, session.ErrInvalidOrExpiredCode):
		return "invalid_code"
	case errors.Is(err, session.ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, session.ErrAlreadySigned):
		return "already_signed"
	default:
		return "error"
	}
}

func (s *Server) listSessions(c *gin.Context) {
	id := auth.Identity(c)
	sessions, err := s.sessions.ListSessions(c.Request.Context(), id.ID, id.Role)
	if err != nil {
		s.fail(c, err)
		return
	}
	if sessions == nil {
		sessions = []session.SessionCode{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) moduleReport(c *gin.Context) {
	rep, err := s.reports.ModuleReport(c.Request.Context(), c.Param("code"), auth.Identity(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *Server) exportModuleReport(c *gin.Context) {
	rep, err := s.reports.ModuleReport(c.Request.Context(), c.Param("code"), auth.Identity(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	f, err := report.ExportXLSX(rep)
	if err != nil {
		s.fail(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="attendance-`+rep.Module.Code+`.xlsx"`)
	if err := f.Write(c.Writer); err != nil {
		log.Printf("xlsx export write failed: %v", err)
	}
}

func (s *Server) studentReport(c *gin.Context) {
	rep, err := s.reports.StudentReport(c.Request.Context(), c.Param("code"), auth.Identity(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// observeRequests records request durations by route template.
func observeRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" || path == "/metrics" || path == "/healthz" {
			return
		}
		metrics.RequestDuration.
			WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// securityHeaders sets the usual browser hardening headers.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
