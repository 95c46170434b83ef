package queue

import (
	"fmt"
	"time"

	"github.com/cognify-labs/cognify/backend/internal/util"
	"github.com/cognify-labs/cognify/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	GraphQueue = "graph_queue"

	TopicExchange      = "pubsub_exchange"
	GraphCompleteTopic = "graph.complete"

	// MaxRetries is how often a message goes through the retry queue before
	// it is parked in the dead letter queue.
	MaxRetries = 10
	retryDelay = 10 * time.Second
)

// Configured reports whether a broker is set up in the environment.
func Configured() bool {
	return util.GetEnv("RABBITMQ_HOST") != ""
}

func connectionURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnvString("RABBITMQ_USER", "guest"),
		util.GetEnvString("RABBITMQ_PASSWORD", "guest"),
		util.GetEnv("RABBITMQ_HOST"),
		util.GetEnvString("RABBITMQ_PORT", "5672"),
	)
}

func Init() *amqp091.Connection {
	conn, err := amqp091.Dial(connectionURL())
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// SetupQueues declares every queue with its _retry and _dlq companions and
// the topic exchange used for notifications.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	if err := declareTopicExchange(ch); err != nil {
		return fmt.Errorf("exchange declare failed: %w", err)
	}

	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		); err != nil {
			return fmt.Errorf("queue declare %s failed: %w", name, err)
		}

		dlqName := DeadLetterQueue(name)
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s failed: %w", dlqName, err)
		}

		retryName := RetryQueue(name)
		if _, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelay.Milliseconds()),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		); err != nil {
			return fmt.Errorf("queue declare %s failed: %w", retryName, err)
		}
	}

	return nil
}

func RetryQueue(name string) string {
	return name + "_retry"
}

func DeadLetterQueue(name string) string {
	return name + "_dlq"
}

func declareTopicExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		TopicExchange,
		"topic",
		false,
		true,
		false,
		false,
		nil,
	)
}

// Publisher is the part of *amqp091.Channel used to send messages.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

func PublishFIFO(ch Publisher, queueName string, data []byte) error {
	return ch.Publish(
		"",
		queueName,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         data,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

func PublishTopic(ch Publisher, topic string, data []byte) error {
	return ch.Publish(
		TopicExchange,
		topic,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         data,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
}
