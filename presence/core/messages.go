package core

import "fmt"

// Message is shown to the employee in English and Indonesian.
type Message struct {
	English    string `json:"en"`
	Indonesian string `json:"id"`
}

func (m Message) String() string {
	return m.English
}

var messages = map[ReasonCode]Message{
	ReasonCheckedIn:           {"Check-in recorded", "Absen masuk berhasil dicatat"},
	ReasonCheckedOut:          {"Check-out recorded, shift completed", "Absen pulang berhasil dicatat, shift selesai"},
	ReasonAlreadyCheckedIn:    {"Already checked in for this shift", "Anda sudah absen masuk untuk shift ini"},
	ReasonCheckInRecorded:     {"Late check-in recorded, attendance will be reviewed", "Absen masuk terlambat dicatat, kehadiran akan ditinjau"},
	ReasonCheckOutRecorded:    {"Check-out recorded, attendance will be reviewed", "Absen pulang dicatat, kehadiran akan ditinjau"},
	ReasonLowConfidence:       {"Face match confidence %.2f is below the required %.2f", "Tingkat kecocokan wajah %.2f di bawah batas minimal %.2f"},
	ReasonFaceNotVerified:     {"Face could not be verified", "Wajah tidak dapat diverifikasi"},
	ReasonVerificationError:   {"Face verification failed: %s", "Verifikasi wajah gagal: %s"},
	ReasonRoundsIncomplete:    {"Only %d of %d presence checks completed, shift marked absent", "Hanya %d dari %d verifikasi kehadiran yang diselesaikan, shift ditandai tidak hadir"},
	ReasonValidPercentageLow:  {"Only %.0f%% of presence checks were on site, %.0f%% required, shift marked absent", "Hanya %.0f%% verifikasi kehadiran yang berada di lokasi, minimal %.0f%%, shift ditandai tidak hadir"},
	ReasonTallyUnavailable:    {"Presence checks could not be confirmed, please try again", "Verifikasi kehadiran tidak dapat dikonfirmasi, silakan coba lagi"},
	ReasonMissingCheckIn:      {"No check-in found for this shift", "Tidak ada absen masuk untuk shift ini"},
	ReasonShiftManuallyEdited: {"Shift is managed manually, attendance recorded without changes", "Shift dikelola secara manual, kehadiran dicatat tanpa perubahan"},
	ReasonShiftNotCheckable:   {"Shift does not accept attendance", "Shift tidak menerima absensi"},
	ReasonDuplicateCheckOut:   {"Already checked out for this shift", "Anda sudah absen pulang untuk shift ini"},
	ReasonNoCheckIn:           {"No check-in before the shift ended, shift marked absent", "Tidak ada absen masuk hingga shift berakhir, shift ditandai tidak hadir"},
	ReasonNoCheckOut:          {"No check-out after the shift ended, shift marked absent", "Tidak ada absen pulang setelah shift berakhir, shift ditandai tidak hadir"},
	ReasonInsufficientGps:     {"Too few presence checks were on site, shift marked absent", "Terlalu sedikit verifikasi kehadiran di lokasi, shift ditandai tidak hadir"},
	ReasonLateCheckIn:         {"Late check-in found, absence reverted", "Absen masuk terlambat ditemukan, status tidak hadir dibatalkan"},
}

// MessageFor formats the bilingual message for a reason. Both languages take
// the same arguments in the same order.
func MessageFor(code ReasonCode, args ...any) Message {
	m, ok := messages[code]
	if !ok {
		return Message{English: string(code), Indonesian: string(code)}
	}
	if len(args) == 0 {
		return m
	}
	return Message{
		English:    fmt.Sprintf(m.English, args...),
		Indonesian: fmt.Sprintf(m.Indonesian, args...),
	}
}
