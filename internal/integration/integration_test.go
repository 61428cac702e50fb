package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quizroom/internal/domain"
	pginfra "quizroom/internal/infra/postgres"
	pgmigrations "quizroom/internal/infra/postgres/migrations"
	redisinfra "quizroom/internal/infra/redis"
	"quizroom/internal/session"
)

type nullClient struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *nullClient) Send(evt domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *nullClient) Close() {}

func TestGameEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := pginfra.NewQuizLoader(pool)
	quizzes := redisinfra.NewQuizRepository(redisClient, loader, 5*time.Minute)
	history := pginfra.NewHistoryRepository(pool)
	marker := redisinfra.NewRegistryMarker(redisClient, 5*time.Minute)
	registry := session.NewRegistry(history, marker)

	quiz, err := quizzes.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if exists, _ := redisClient.Exists(ctx, "quiz:quiz-1").Result(); exists != 1 {
		t.Fatalf("quiz not cached in redis after load")
	}

	game, err := registry.Create(quiz, session.ModeNormal)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if exists, _ := redisClient.Exists(ctx, "game:session:"+game.Code()).Result(); exists != 1 {
		t.Fatalf("liveness marker missing for live session")
	}

	org, alice := &nullClient{}, &nullClient{}
	if err := game.JoinOrganizer(org); err != nil {
		t.Fatalf("join organizer: %v", err)
	}
	if err := game.JoinPlayer("Alice", alice); err != nil {
		t.Fatalf("join player: %v", err)
	}
	if err := game.NextQuestion(); err != nil {
		t.Fatalf("start question: %v", err)
	}
	if err := game.SubmitChoices("Alice", []int{1}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if accepted, err := game.Finalize("Alice"); err != nil || !accepted {
		t.Fatalf("finalize: accepted=%v err=%v", accepted, err)
	}
	if err := game.GoToResult(); err != nil {
		t.Fatalf("finish: %v", err)
	}

	// History persistence is asynchronous; poll for the record.
	var count int
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if err := pool.QueryRow(ctx, `SELECT count(*) FROM game_history`).Scan(&count); err == nil && count == 1 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if count != 1 {
		t.Fatalf("expected one history record, got %d", count)
	}

	var title string
	var topScore int
	if err := pool.QueryRow(ctx, `SELECT quiz_title, top_score FROM game_history`).Scan(&title, &topScore); err != nil {
		t.Fatalf("read record: %v", err)
	}
	if title != "Sample" || topScore != 10 {
		t.Fatalf("unexpected record: title=%q topScore=%d", title, topScore)
	}

	// Eviction clears the liveness marker.
	for time.Now().Before(deadline) {
		if exists, _ := redisClient.Exists(ctx, "game:session:"+game.Code()).Result(); exists == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if exists, _ := redisClient.Exists(ctx, "game:session:"+game.Code()).Result(); exists != 0 {
		t.Fatalf("liveness marker not cleared after eviction")
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:       "quiz-1",
		Title:    "Sample",
		Duration: 30,
		Questions: []domain.Question{
			{
				ID:     "q1",
				Text:   "What is 2 + 2?",
				Type:   domain.MultipleChoice,
				Points: 10,
				Choices: []domain.Choice{
					{Text: "3"},
					{Text: "4", Correct: true},
					{Text: "5"},
				},
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
