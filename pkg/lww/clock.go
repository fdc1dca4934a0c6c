package lww

import "time"

func systemNowMillis() int64 { return time.Now().UnixMilli() }
