package cli

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"autocatalog/admin"
	"autocatalog/cache"
	"autocatalog/catalog"
	"autocatalog/config"
	"autocatalog/editorial"
	"autocatalog/email"
	"autocatalog/logger"
	"autocatalog/media"
	"autocatalog/site"
	"autocatalog/users"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := setup(true)
		if err != nil {
			return err
		}
		defer logger.Sync()

		if cfg.LogJSON {
			gin.SetMode(gin.ReleaseMode)
		}
		router := newRouter(cfg, db)

		logger.L().Info("starting server", zap.String("port", cfg.Port), zap.String("domain", cfg.Domain))
		return router.Run(":" + cfg.Port)
	},
}

// newRouter builds the engine with every module registered.
func newRouter(cfg *config.Config, db *gorm.DB) *gin.Engine {
	router := gin.New()
	router.Use(logger.GinLogger(), logger.GinRecovery())

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   false,
	})
	router.Use(sessions.Sessions("autocatalog-session", store))

	mediaStore := media.NewStore(cfg.MediaDir)
	router.Static("/media", mediaStore.Dir())

	cacheStore := cache.NewStore(cfg.CacheDir, cfg.CacheMaxAge)
	if err := cacheStore.ClearOld(); err != nil {
		logger.L().Warn("failed to prune cache", zap.Error(err))
	}
	mailer := email.New(cfg.SMTP)

	usersModule := users.NewUsersModule(db, mailer, mediaStore)
	usersModule.RegisterRoutes(router)

	catalogModule := catalog.NewCatalogModule(db, cacheStore)
	catalogModule.RegisterRoutes(router)

	editorialModule := editorial.NewEditorialModule(db, cacheStore, mailer, mediaStore, cfg.Domain)
	editorialModule.RegisterRoutes(router)

	adminModule := admin.NewAdminModule(db, cacheStore, mediaStore, usersModule, editorialModule)
	adminModule.RegisterRoutes(router)

	siteModule := site.NewSiteModule(db, catalogModule, cacheStore, cfg.Domain)
	siteModule.RegisterRoutes(router)

	return router
}
