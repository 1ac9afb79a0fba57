// Package rabbitmq содержит низкоуровневые помощники для работы с очередью
// задач: подключение, объявление топологии, публикацию и потребление.
// Топология состоит из рабочей очереди и очереди отложенного повтора:
// сообщение в очереди повтора лежит retry delay и возвращается в рабочую
// очередь через dead-letter маршрутизацию.
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Имена элементов топологии очереди задач.
const (
	TasksExchange = "tasks"
	WorkQueue     = "tasks.work"
	RetryQueue    = "tasks.retry"
	WorkKey       = "work"
	RetryKey      = "retry"
)

// Connect подключается к RabbitMQ с повторами на время старта брокера.
func Connect(connection string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	var conn *amqp.Connection
	var err error

	for range retries {
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}

// SetupChannel создаёт канал и объявляет топологию очереди задач.
// retryDelay — время, которое сообщение проводит в очереди повтора.
func SetupChannel(conn *amqp.Connection, retryDelay time.Duration) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	err = ch.ExchangeDeclare(
		TasksExchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = ch.QueueDeclare(
		WorkQueue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, WorkQueue, err)
	}
	if err = ch.QueueBind(WorkQueue, WorkKey, TasksExchange, false, nil); err != nil {
		return nil, fmt.Errorf("%s: failed to bind queue %s: %w", op, WorkQueue, err)
	}

	_, err = ch.QueueDeclare(
		RetryQueue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-message-ttl":             retryDelay.Milliseconds(),
			"x-dead-letter-exchange":    TasksExchange,
			"x-dead-letter-routing-key": WorkKey,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, RetryQueue, err)
	}
	if err = ch.QueueBind(RetryQueue, RetryKey, TasksExchange, false, nil); err != nil {
		return nil, fmt.Errorf("%s: failed to bind queue %s: %w", op, RetryQueue, err)
	}

	return ch, nil
}
