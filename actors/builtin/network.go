package builtin

// The duration of an epoch, assumed wherever a period written in clock time is converted to epochs.
const EpochDurationSeconds = 30
const SecondsInHour = 60 * 60
const EpochsInHour = SecondsInHour / EpochDurationSeconds
const EpochsInDay = 24 * EpochsInHour
const EpochsInYear = 365 * EpochsInDay
