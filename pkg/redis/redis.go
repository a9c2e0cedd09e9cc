package redis

import (
	"strings"
	"time"

	"github.com/go-redis/redis"
)

type _client struct {
	cli *redis.Client
}

var clientMap map[string]_client

func init() {
	clientMap = make(map[string]_client)
	Init("default", "127.0.0.1:6379", "")
}

func Init(dbName string, host string, password string) error {
	hostSlice := strings.Split(host, ",")
	client := redis.NewClient(&redis.Options{
		Addr:     hostSlice[0],
		Password: password,
		DB:       0,
	})
	_, err := client.Ping().Result()
	if err != nil {
		return err
	}
	clientMap[dbName] = _client{cli: client}
	return nil
}

type Handler struct {
	client            *redis.Client
	DefaultExpiration time.Duration
}

func NewRedisHandler(db string) *Handler {
	handler := &Handler{DefaultExpiration: time.Hour * 24}
	handler.client = Client(db)
	return handler
}

func Client(db string) *redis.Client {
	return clientMap[db].cli
}

func (rh *Handler) Expire(expiration time.Duration) {
	rh.DefaultExpiration = expiration
}

func (rh *Handler) Set(key string, value interface{}) {
	err := rh.client.Set(key, value, rh.DefaultExpiration).Err()
	if err != nil {
	}
}

func (rh *Handler) SetWithExpireTime(key string, value string, expiry time.Duration) {
	err := rh.client.Set(key, value, expiry).Err()
	if err != nil {
	}
}

// AcquireLock 基于 SetNX 的互斥锁，key 在 expiry 内只允许一个持有者.
func (rh *Handler) AcquireLock(key string, value string, expiry time.Duration) (isSuccess bool, err error) {
	isSuccess, err = rh.client.SetNX(key, value, expiry).Result()
	if err != nil {
		return
	}
	return
}

func (rh *Handler) Delete(key string) {
	rh.client.Del(key)
}

func (rh *Handler) Exist(key string) (flag bool) {
	count, err := rh.client.Exists(key).Result()
	if err != nil {
	}
	if count != 0 {
		flag = true
	}
	return
}

func (rh *Handler) Get(key string) string {
	val, err := rh.client.Get(key).Result()
	if err != nil {
		return ""
	}
	return val
}

func (rh *Handler) Pub(channel string, message string) (err error) {
	err = rh.client.Publish(channel, message).Err()
	if err != nil {
		return
	}
	return
}

func (rh *Handler) Subscribe(channel string) (ret *redis.PubSub) {
	ret = rh.client.Subscribe(channel)
	return
}
