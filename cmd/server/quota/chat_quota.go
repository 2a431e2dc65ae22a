package quota

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"doc-chat/config"
)

// ChatQuotaLimiter 는 채팅 턴마다 호출되는 LLM 요청 수를 제한한다.
// 분당 한도는 토큰 버킷으로, 일일 한도는 UTC 날짜별 카운터로 관리한다.
// 카운터는 프로세스 메모리에만 있으므로 서버를 재시작하면 초기화된다.
type ChatQuotaLimiter struct {
	mu sync.Mutex

	perMinute *rate.Limiter // nil 이면 분당 제한 없음

	dailyLimit int
	turnsToday int
	day        string

	now func() time.Time
}

// NewChatQuotaLimiterFromConfig 는 server.chat_quota 설정으로 limiter 를 생성한다.
func NewChatQuotaLimiterFromConfig(cfg config.ServerConfig) *ChatQuotaLimiter {
	return NewChatQuotaLimiter(cfg.ChatQuota.RequestsPerMinute, cfg.ChatQuota.RequestsPerDay)
}

// NewChatQuotaLimiter 의 인자가 0 이하면 그 방향은 제한하지 않는다.
func NewChatQuotaLimiter(turnsPerMinute, turnsPerDay int) *ChatQuotaLimiter {
	l := &ChatQuotaLimiter{now: time.Now}
	if turnsPerMinute > 0 {
		l.perMinute = rate.NewLimiter(rate.Every(time.Minute/time.Duration(turnsPerMinute)), 1)
	}
	if turnsPerDay > 0 {
		l.dailyLimit = turnsPerDay
	}
	return l
}

// WaitAndReserve 는 채팅 턴 하나를 위한 LLM 호출 슬롯을 예약한다.
//   - 오늘 한도를 다 쓴 경우: (false, nil). 대기하지 않고 바로 거절한다.
//   - 분당 한도 때문에 기다리다 ctx 가 끝난 경우: (false, ctx.Err()).
//     이때 예약한 슬롯과 일일 카운트는 되돌린다.
func (l *ChatQuotaLimiter) WaitAndReserve(ctx context.Context) (bool, error) {
	l.mu.Lock()
	now := l.now()
	day := now.UTC().Format("2006-01-02")
	if l.day != day {
		l.day = day
		l.turnsToday = 0
	}
	if l.dailyLimit > 0 && l.turnsToday >= l.dailyLimit {
		l.mu.Unlock()
		return false, nil
	}
	l.turnsToday++

	var slot *rate.Reservation
	if l.perMinute != nil {
		slot = l.perMinute.ReserveN(now, 1)
	}
	l.mu.Unlock()

	if slot == nil {
		return true, nil
	}
	delay := slot.DelayFrom(now)
	if delay <= 0 {
		return true, nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true, nil
	case <-ctx.Done():
		l.release(slot, day)
		return false, ctx.Err()
	}
}

// release 는 취소된 턴이 차지한 분당 슬롯과 일일 카운트를 돌려준다.
func (l *ChatQuotaLimiter) release(slot *rate.Reservation, day string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.CancelAt(l.now())
	if l.day == day && l.turnsToday > 0 {
		l.turnsToday--
	}
}
