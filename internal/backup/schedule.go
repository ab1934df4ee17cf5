package backup

import (
	"fmt"
	"github.com/robfig/cron/v3"
	"paperstack/internal/misc"
	"paperstack/internal/types"
	"time"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CronExpression derives the five field cron expression for a backup policy.
// It returns an empty expression for manual backups, which have no trigger.
func CronExpression(frequency types.Frequency, backupTime string) (string, error) {
	hour, minute, err := misc.ParseClock(backupTime)
	if err != nil {
		return "", err
	}

	switch frequency {
	case types.FrequencyDaily:
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	case types.FrequencyWeekly:
		return fmt.Sprintf("%d %d * * 0", minute, hour), nil
	case types.FrequencyMonthly:
		return fmt.Sprintf("%d %d 1 * *", minute, hour), nil
	case types.FrequencyManual:
		return "", nil
	default:
		return "", fmt.Errorf("unknown backup frequency %q", frequency)
	}
}

// NextTrigger is the first trigger strictly after now, in UTC. ok is false for
// manual backups.
func NextTrigger(frequency types.Frequency, backupTime string, now time.Time) (next time.Time, ok bool, err error) {
	expression, err := CronExpression(frequency, backupTime)
	if err != nil || expression == "" {
		return time.Time{}, false, err
	}

	return NextCron(expression, now)
}

func NextCron(expression string, now time.Time) (time.Time, bool, error) {
	schedule, err := cronParser.Parse(expression)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule.Next(now.UTC()), true, nil
}
