package dal

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"stablepay-api/internal/config"
)

var (
	mqConn    *amqp.Connection
	mqChannel *amqp.Channel

	mu sync.Mutex

	// 用 NotifyClose 事件来判断是否已关闭（而不是 IsClosed）
	connClosedCh chan *amqp.Error
	chClosedCh   chan *amqp.Error

	reconnecting bool
	closing      bool
)

// InitRabbitMQ 初始化（首次连接）
func InitRabbitMQ() error {
	return connect()
}

// -------- 内部：连接与自愈 --------

func connect() error {
	mu.Lock()
	defer mu.Unlock()

	if isConnAlive() && isChanAlive() {
		return nil
	}

	c := config.C.RabbitMQ
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/%s", c.Username, c.Password, c.Host, c.Port, c.VirtualHost)
	log.Printf("[RabbitMQ] 连接中: %s:%d/%s", c.Host, c.Port, c.VirtualHost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return fmt.Errorf("连接失败: %w", err)
	}
	mqConn = conn
	connClosedCh = conn.NotifyClose(make(chan *amqp.Error, 1))

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		mqConn = nil
		connClosedCh = nil
		return fmt.Errorf("创建通道失败: %w", err)
	}
	mqChannel = ch
	chClosedCh = ch.NotifyClose(make(chan *amqp.Error, 1))

	if pc := c.PrefetchCount; pc > 0 {
		if err := ch.Qos(pc, 0, false); err != nil {
			log.Printf("[RabbitMQ] 设置 QoS 失败: %v", err)
		}
	}

	// 重连后拓扑需要重新声明
	if err := declareTopology(ch, c); err != nil {
		return err
	}

	log.Printf("[RabbitMQ] 初始化成功 → Host=%s Port=%d VHost=%s", c.Host, c.Port, c.VirtualHost)

	go watchClose()

	return nil
}

func declareTopology(ch *amqp.Channel, c config.RabbitCfg) error {
	if err := ch.ExchangeDeclare(c.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare %s failed: %w", c.Exchange, err)
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare %s failed: %w", c.Queue, err)
	}
	if err := ch.QueueBind(c.Queue, c.Queue, c.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind %s failed: %w", c.Queue, err)
	}
	return nil
}

// 监听关闭事件，触发重连
func watchClose() {
	for {
		select {
		case err, ok := <-connClosedCh:
			if ok {
				log.Printf("[RabbitMQ] 连接关闭: %v", err)
				reconnect()
				return
			}
		case err, ok := <-chClosedCh:
			if ok {
				log.Printf("[RabbitMQ] 通道关闭: %v", err)
				reconnect()
				return
			}
		}
	}
}

// 自愈重连（阻塞重试直至成功）
func reconnect() {
	mu.Lock()
	if reconnecting || closing {
		mu.Unlock()
		return
	}
	reconnecting = true
	mu.Unlock()

	defer func() {
		mu.Lock()
		reconnecting = false
		mu.Unlock()
	}()

	for {
		log.Println("[RabbitMQ] 正在重连...")
		if err := connect(); err == nil {
			log.Println("[RabbitMQ] 重连成功")
			return
		}
		time.Sleep(5 * time.Second)
	}
}

func isConnAlive() bool {
	if mqConn == nil || connClosedCh == nil {
		return false
	}
	select {
	case <-connClosedCh:
		return false
	default:
		return true
	}
}

func isChanAlive() bool {
	if mqChannel == nil || chClosedCh == nil {
		return false
	}
	select {
	case <-chClosedCh:
		return false
	default:
		return true
	}
}

// GetChannel 通道断开时先重连
func GetChannel() *amqp.Channel {
	if !isChanAlive() {
		reconnect()
	}
	return mqChannel
}

// CloseRabbitMQ 关闭通道与连接
func CloseRabbitMQ() {
	mu.Lock()
	defer mu.Unlock()
	closing = true
	if mqChannel != nil {
		_ = mqChannel.Close()
	}
	if mqConn != nil {
		_ = mqConn.Close()
	}
}
