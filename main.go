package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mgelsinger/maze-wars/api"
	gameapi "github.com/mgelsinger/maze-wars/api/game"
	api_i "github.com/mgelsinger/maze-wars/api/i"
	"github.com/mgelsinger/maze-wars/api/identity"
	statsapi "github.com/mgelsinger/maze-wars/api/stats"
	"github.com/mgelsinger/maze-wars/config"
	lb "github.com/mgelsinger/maze-wars/infrastruture/leaderboard"
	"github.com/mgelsinger/maze-wars/infrastruture/repo"
	"github.com/mgelsinger/maze-wars/infrastruture/token"
	"github.com/mgelsinger/maze-wars/service"
	"github.com/mgelsinger/maze-wars/service/i"
)

// Global variables for dependencies
var (
	mongoClient     *mongo.Client
	redisClient     *redis.Client
	leaderboard     i.Leaderboard
	statsRepo       *repo.StatsRepo
	userRepo        i.UserRepo
	roomManager     *service.RoomManager
	matchQueue      *service.MatchmakingQueue
	jwtTokenizer    i.Tokenizer
	authService     i.Authenticator
	authController  api_i.Controller
	gameController  api_i.Controller
	statsController api_i.Controller
	router          *api.Router
	appLogger       *logrus.Logger
)

func initMongo(ctx context.Context) {
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%v", config.Envs.DBUser, config.Envs.DBPassword, config.Envs.DBHost, config.Envs.DBPort)

	clientOptions := options.Client().ApplyURI(uri)
	var err error
	mongoClient, err = mongo.Connect(ctx, clientOptions)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	if err = mongoClient.Ping(ctx, nil); err != nil {
		appLogger.WithError(err).Fatal("MongoDB ping failed")
	}
	appLogger.Info("Connected to MongoDB")
}

func initRedis(ctx context.Context) {
	redisClient = redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", config.Envs.RedisHost, config.Envs.RedisPort),
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		appLogger.WithError(err).Fatal("Redis ping failed")
	}
	appLogger.Info("Connected to Redis")
}

func initLeaderboard() {
	var err error
	leaderboard, err = lb.NewRedisLeaderboard(redisClient, "")
	if err != nil {
		appLogger.WithError(err).Fatal("Creating leaderboard")
	}
	appLogger.Info("Leaderboard initialized")
}

func initRepos() {
	userRepo = repo.NewUserRepo(mongoClient, config.Envs.DBName, "users")
	statsRepo = repo.NewStatsRepo(mongoClient, config.Envs.DBName, leaderboard, logrus.NewEntry(appLogger))
	appLogger.Info("Repositories initialized")
}

func initRoomManager() {
	var err error
	roomManager, err = service.NewRoomManager(service.RoomManagerConfig{
		Stats:  statsRepo,
		Logger: logrus.NewEntry(appLogger),
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Creating room manager")
	}
	roomManager.Start()
	appLogger.Info("Room manager initialized")
}

func initMatchmaking() {
	var err error
	matchQueue, err = service.NewMatchmakingQueue(roomManager, service.MatchmakingOptions{
		Logger: logrus.NewEntry(appLogger),
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Creating matchmaking queue")
	}
	matchQueue.Start()
	appLogger.Info("Matchmaking queue initialized")
}

func initJWTTokenizer() {
	jwtTokenizer = token.NewJwtService(config.Envs.JWTSecret, config.Envs.JWTIssuer)
	appLogger.Info("JWT Tokenizer initialized")
}

func initAuthService() {
	var err error
	authService, err = service.NewAuthService(userRepo, jwtTokenizer)
	if err != nil {
		appLogger.WithError(err).Fatal("Creating auth service")
	}
	appLogger.Info("Auth service initialized")
}

func initControllers() {
	authController = identity.NewIdentityServer(authService)

	var err error
	gameController, err = gameapi.NewWSController(gameapi.Config{
		Rooms:  roomManager,
		Queue:  matchQueue,
		Stats:  statsRepo,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Creating websocket controller")
	}

	statsController, err = statsapi.NewStatsController(statsRepo, leaderboard)
	if err != nil {
		appLogger.WithError(err).Fatal("Creating stats controller")
	}
	appLogger.Info("Controllers initialized")
}

func initRouter(t i.Tokenizer) {
	router = api.NewRouter(api.Config{
		Addr:                    fmt.Sprintf("%s:%v", config.Envs.HostIP, config.Envs.RESTPort),
		BaseURL:                 "/api",
		Controllers:             []api_i.Controller{authController, gameController, statsController},
		AuthorizationMiddleware: identity.Authoriz(t),
	})
	appLogger.Info("Router initialized")
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	appLogger = logrus.New()
	appLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	gin.SetMode(config.Envs.GinMode)

	initMongo(ctx)
	defer func() {
		_ = mongoClient.Disconnect(ctx)
	}()

	initRedis(ctx)
	defer func() {
		_ = redisClient.Close()
	}()

	initLeaderboard()
	initRepos()
	initRoomManager()
	defer roomManager.Stop()

	initMatchmaking()
	defer matchQueue.Stop()

	initJWTTokenizer()
	initAuthService()
	initControllers()
	initRouter(jwtTokenizer)

	// Run HTTP server
	if err := router.Run(); err != nil {
		appLogger.WithError(err).Error("Starting server")
		os.Exit(1)
	}
}
