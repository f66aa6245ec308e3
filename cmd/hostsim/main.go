// Command hostsim plays the embedding page against a running checkout
// service over the redis or kafka bridge transport.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/tonyboom3d/exact-view-framework/config"
	"github.com/tonyboom3d/exact-view-framework/internal/hostsim"
	"github.com/tonyboom3d/exact-view-framework/internal/infra/redis"
	"github.com/tonyboom3d/exact-view-framework/internal/transport"
	pkgLog "github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

type options struct {
	transport    string
	redisAddr    string
	brokers      []string
	groupID      string
	toHost       string
	fromHost     string
	scenario     string
	settleAfter  int
	settleStatus string
	downgrade    bool
	announce     bool
	paymentDelay time.Duration
	currency     string
	logLevel     string
	logEncoding  string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("hostsim", pflag.ContinueOnError)
	fs.StringVar(&o.transport, "transport", config.TransportRedis, "bridge transport: redis or kafka")
	fs.StringVar(&o.redisAddr, "redis-addr", "localhost:6379", "redis address")
	fs.StringSliceVar(&o.brokers, "brokers", []string{"localhost:9092"}, "kafka brokers")
	fs.StringVar(&o.groupID, "group", "checkout-bridge", "kafka consumer group prefix")
	fs.StringVar(&o.toHost, "to-host", "checkout.to-host", "topic the checkout service writes")
	fs.StringVar(&o.fromHost, "from-host", "checkout.from-host", "topic the checkout service reads")
	fs.StringVarP(&o.scenario, "scenario", "s", string(hostsim.ScenarioSuccessful), "checkout outcome: Successful, Pending, Cancelled or Failed")
	fs.IntVar(&o.settleAfter, "settle-after", 2, "status checks a pending payment answers pending")
	fs.StringVar(&o.settleStatus, "settle-status", "paid", "status a pending payment settles to")
	fs.BoolVar(&o.downgrade, "downgrade-pending", false, "report Pending checkouts as Cancelled")
	fs.BoolVar(&o.announce, "announce-processing", true, "push PAYMENT_PROCESSING before answering a checkout")
	fs.DurationVar(&o.paymentDelay, "payment-delay", 2*time.Second, "time the simulated payment page stays open")
	fs.StringVar(&o.currency, "currency", "ILS", "order currency")
	fs.StringVar(&o.logLevel, "log-level", "info", "log level")
	fs.StringVar(&o.logEncoding, "log-encoding", "console", "log encoding: console or json")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.transport != config.TransportRedis && o.transport != config.TransportKafka {
		return o, fmt.Errorf("unsupported transport %q", o.transport)
	}
	return o, nil
}

func (o options) config() *config.Config {
	return &config.Config{
		Redis: config.RedisConfig{Addr: o.redisAddr, PoolSize: 4},
		Kafka: config.KafkaConfig{
			Brokers:              o.brokers,
			ProducerRetryMax:     3,
			ProducerRequiredAcks: 1,
			ConsumerGroupID:      o.groupID,
		},
		Bridge: config.BridgeConfig{
			Transport:     o.transport,
			OutboundTopic: o.toHost,
			InboundTopic:  o.fromHost,
		},
	}
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "hostsim: %v\n", err)
		os.Exit(2)
	}
	scenario, err := hostsim.ParseScenario(o.scenario)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hostsim: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    o.logLevel,
		Mode:     "development",
		Encoding: o.logEncoding,
	})
	cfg := o.config()

	var redisCli *goredis.Client
	if cfg.Bridge.Transport == config.TransportRedis {
		redisCli, err = redis.Connect(ctx, cfg.Redis, l)
		if err != nil {
			l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
		}
		defer redis.Disconnect(context.Background(), redisCli, l)
	}

	port, err := transport.Open(ctx, cfg, redisCli, transport.Host, l)
	if err != nil {
		l.Fatalf(ctx, "Failed to open bridge: %v", err)
	}

	host := hostsim.New(port, l, o.hostConfig(scenario))
	l.Infof(ctx, "hostsim: serving %s scenario over %s", scenario, cfg.Bridge.Transport)
	if err := host.Run(ctx); err != nil {
		l.Errorf(ctx, "hostsim: %v", err)
	}

	if err := port.Close(); err != nil {
		l.Warnf(ctx, "Bridge close: %v", err)
	}
	l.Info(ctx, "hostsim exited")
}

func (o options) hostConfig(scenario hostsim.Scenario) hostsim.Config {
	return hostsim.Config{
		Scenario:           scenario,
		DowngradePending:   o.downgrade,
		SettleAfter:        o.settleAfter,
		SettleStatus:       o.settleStatus,
		AnnounceProcessing: o.announce,
		PaymentDelay:       o.paymentDelay,
		Currency:           o.currency,
	}
}
