package lifecycle

import (
	"fmt"
	"strings"
	"time"
	// 内嵌时区数据库，容器镜像中可能没有 /usr/share/zoneinfo
	_ "time/tzdata"

	"scripture_quiz_backend/internal/model"
)

// Availability 测验在某一时刻的可作答状态
type Availability struct {
	Status      model.AvailabilityStatus `json:"status"`
	Available   bool                     `json:"available"`
	Message     string                   `json:"message"`
	WindowStart *time.Time               `json:"windowStart,omitempty"`
	WindowEnd   *time.Time               `json:"windowEnd,omitempty"`
}

const displayLayout = "Mon, 02 Jan 2006 15:04 MST"

// ComputeAvailability 计算 quiz 在 now 时刻的时间窗口状态。
// 比较全部在 UTC 下进行，Timezone 只影响 Message 的展示格式。
func ComputeAvailability(quiz *model.Quiz, now time.Time) Availability {
	if quiz.Status != model.QuizPublished {
		return Availability{
			Status:  model.AvailabilityNotScheduled,
			Message: "Quiz is not published yet.",
		}
	}

	if quiz.StartTime == nil {
		// deferred 为正常的待排期；legacy/scheduled 缺少开始时间属于脏数据，同样按未排期处理
		msg := "Schedule pending."
		if quiz.SchedulingStatus != model.SchedulingDeferred {
			msg = "Schedule pending: start time is missing."
		}
		return Availability{
			Status:  model.AvailabilityNotScheduled,
			Message: msg,
		}
	}

	start := quiz.StartTime.UTC()
	end := quiz.WindowEnd().UTC()
	now = now.UTC()
	loc := displayLocation(quiz.Timezone)

	a := Availability{WindowStart: &start, WindowEnd: &end}
	switch {
	case now.Before(start):
		a.Status = model.AvailabilityUpcoming
		a.Message = fmt.Sprintf("Quiz has not started yet. Starts in %s (%s).",
			HumanizeDuration(start.Sub(now)), start.In(loc).Format(displayLayout))
	case now.After(end):
		a.Status = model.AvailabilityEnded
		a.Message = "Quiz has ended."
	default:
		a.Status = model.AvailabilityActive
		a.Available = true
		a.Message = fmt.Sprintf("Quiz is open until %s.", end.In(loc).Format(displayLayout))
	}
	return a
}

func displayLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ValidTimezone 判断 tz 是否为可加载的 IANA 时区名
func ValidTimezone(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// HumanizeDuration 把时长格式化为 "2 days 3 hours" 这样的文本，最多两个单位
func HumanizeDuration(d time.Duration) string {
	if d < time.Minute {
		return "less than a minute"
	}
	units := []struct {
		name string
		size time.Duration
	}{
		{"day", 24 * time.Hour},
		{"hour", time.Hour},
		{"minute", time.Minute},
	}

	var parts []string
	for _, u := range units {
		if len(parts) == 2 {
			break
		}
		n := d / u.size
		if n == 0 {
			if len(parts) > 0 {
				break
			}
			continue
		}
		d -= n * u.size
		label := u.name
		if n != 1 {
			label += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, label))
	}
	return strings.Join(parts, " ")
}
