package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/twmb/franz-go/pkg/kgo"

	migrations "esupervision/db"
	"esupervision/internal/audit"
	"esupervision/internal/casedirectory"
	checkinservice "esupervision/internal/checkin/service"
	checkinstore "esupervision/internal/checkin/store"
	"esupervision/internal/events"
	"esupervision/internal/facematch"
	"esupervision/internal/jobs"
	"esupervision/internal/notification"
	"esupervision/internal/notification/gateway"
	notifstore "esupervision/internal/notification/store"
	"esupervision/internal/objectstore"
	offenderservice "esupervision/internal/offender/service"
	offenderstore "esupervision/internal/offender/store"
	"esupervision/internal/platform/config"
	platformdb "esupervision/internal/platform/db"
	"esupervision/internal/platform/httpserver"
	"esupervision/internal/platform/lock"
	"esupervision/internal/platform/logger"
	"esupervision/internal/platform/metrics"
	platformredis "esupervision/internal/platform/redis"
	"esupervision/internal/platform/scheduler"
	httptransport "esupervision/internal/transport/http"
	"esupervision/pkg/platform/circuit"
	"esupervision/pkg/platform/tx"
)

// main wires the dependency graph and owns the process lifecycle. Business
// rules live in the internal service packages; nothing here makes a decision
// beyond "which implementation backs which port".
func main() {
	cfg := config.FromEnv()
	log := logger.New("esupervision")

	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("ping postgres: %v", err)
	}
	if err := platformdb.Migrate(context.Background(), db, migrations.Migrations); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	// Without redis the in-process locker still gives single-instance
	// deployments the same worker discipline.
	var locker lock.Locker = lock.NewMemoryLocker()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient)
		log.Printf("cluster lock backed by redis")
	} else {
		log.Printf("REDIS_URL not set, using in-process lock")
	}

	var publisher events.Publisher = events.NewMemory()
	var kafkaPublisher *events.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaClient, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.Kafka.Brokers...),
			kgo.DefaultProduceTopic(cfg.Kafka.Topic),
		)
		if err != nil {
			log.Fatalf("connect kafka: %v", err)
		}
		kafkaPublisher = events.NewKafka(kafkaClient, cfg.Kafka.Topic, log)
		publisher = kafkaPublisher
	} else {
		log.Printf("KAFKA_BROKERS not set, domain events stay in-process")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	storage := objectstore.NewS3(s3.NewFromConfig(awsCfg), cfg.S3Bucket)
	comparer := facematch.NewRekognition(rekognition.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.FaceSimilarityThreshold)
	verifier := facematch.NewVerifier(comparer, storage)

	directory := casedirectory.NewHTTP(cfg.DirectoryBaseURL, nil, circuit.New("case-directory"))
	notifyGateway := gateway.NewHTTP(cfg.Notify.BaseURL, cfg.Notify.APIKey, nil, cfg.Notify.RatePerMinute)

	offenders := offenderstore.NewPostgres(db)
	checkins := checkinstore.NewPostgres(db)
	notifications := notifstore.NewPostgres(db)
	recorder := audit.NewRecorder(audit.NewPostgres(db))
	runner := tx.NewRunner(db)

	m := metrics.New()

	orchestrator := notification.NewOrchestrator(
		notifications, notifyGateway, publisher, recorder, directory,
		runner, cfg.Notify, cfg.Kafka.DetailURLBase, m, log)

	offenderSvc := offenderservice.New(offenders, directory, storage, orchestrator, recorder, cfg.UploadTTL, log)
	checkinSvc := checkinservice.New(checkins, offenders, directory, storage, verifier, orchestrator, recorder, cfg.UploadTTL, log)
	creator := checkinservice.NewCreator(checkins, offenders, orchestrator, m, log)

	jobRunner := jobs.NewRunner(locker, jobs.NewPostgresJobLog(db), m,
		cfg.Workers.LockMinHold, cfg.Workers.LockMaxHold, log)

	creation := jobs.NewCreationWorker(offenders, directory, creator, m, log)
	expiry := jobs.NewExpiryWorker(checkins, offenders, directory, orchestrator, runner, m, cfg.GracePeriodDays, log)
	reminder := jobs.NewReminderWorker(checkins, offenders, notifications, orchestrator, m, cfg.ReminderDay, log)

	// Two reconciliation passes: one scoped to worker-batch notifications so
	// batch references are polled promptly, and a catch-all for everything
	// else within the lookback window.
	batchTypes := []string{
		string(audit.EventCheckinCreated),
		string(audit.EventCheckinExpired),
		string(audit.EventCheckinReminded),
	}
	reconcileBatches := jobs.NewReconcileWorker("notification-reconcile-batches",
		notifications, notifyGateway, m, cfg.Notify.StatusLookback, batchTypes, log)
	reconcileAll := jobs.NewReconcileWorker("notification-reconcile",
		notifications, notifyGateway, m, cfg.Notify.StatusLookback, nil, log)

	sched := scheduler.New(log, cfg.Workers.MaxConcurrent)
	sched.Register(jobs.NewLocked(jobs.CreationName, jobRunner, creation.Run), cfg.Workers.CreationInterval)
	sched.Register(jobs.NewLocked(jobs.ExpiryName, jobRunner, expiry.Run), cfg.Workers.ExpiryInterval)
	sched.Register(jobs.NewLocked(jobs.ReminderName, jobRunner, reminder.Run), cfg.Workers.ReminderInterval)
	sched.Register(jobs.NewLocked(reconcileBatches.Name(), jobRunner, reconcileBatches.Run), cfg.Workers.ReconcileInterval)
	sched.Register(jobs.NewLocked(reconcileAll.Name(), jobRunner, reconcileAll.Run), cfg.Workers.ReconcileInterval)
	sched.Start(context.Background())

	handler := httptransport.NewHandler(offenderSvc, checkinSvc, creator, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	go func() {
		log.Printf("listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Printf("shutting down")

	// Drain deadline stays well inside the lock max-hold so an interrupted
	// run's lock still expires for the other instances.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	if err := sched.Stop(ctx); err != nil {
		log.Printf("scheduler drain: %v", err)
	}
	if kafkaPublisher != nil {
		kafkaPublisher.Close(ctx)
	}
}
