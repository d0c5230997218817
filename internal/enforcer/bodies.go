package enforcer

import (
	"regexp"
	"strings"

	"github.com/yangwenmai/scanforge/internal/contract"
)

// Canonical method bodies, written at one indent level of four spaces per
// step. Windows look backwards only, filters touch the D0 range only and
// pattern detection reports D0 rows only.
var canonicalBodies = map[string]string{
	contract.MethodRunScan: `
def run_scan(self, d0_start_user: str, d0_end_user: str) -> pd.DataFrame:
    """Scan the D0 range: fetch history, filter, compute features, detect."""
    lookback_days = int(getattr(self, "lookback_days", 1050))
    start = (pd.Timestamp(d0_start_user) - timedelta(days=lookback_days)).strftime("%Y-%m-%d")
    df = self.fetch_grouped_data(start, d0_end_user)
    if df.empty:
        return pd.DataFrame()
    df = self.compute_simple_features(df)
    df = self.apply_smart_filters(df, d0_start_user, d0_end_user)
    if df.empty:
        return pd.DataFrame()
    df = self.compute_full_features(df)
    return self.detect_patterns(df, d0_start_user, d0_end_user)
`,

	contract.MethodFetchGroupedData: `
def fetch_grouped_data(self, start_date: str, end_date: str) -> pd.DataFrame:
    """Fetch every ticker for every trading day in one batched pass."""
    calendar = mcal.get_calendar("NYSE")
    schedule = calendar.schedule(start_date=start_date, end_date=end_date)
    trading_days = [day.strftime("%Y-%m-%d") for day in schedule.index]
    api_key = getattr(self, "api_key", "")
    base_url = getattr(self, "base_url", "https://api.polygon.io")

    def fetch_day(day: str) -> Optional[pd.DataFrame]:
        url = f"{base_url}` + contract.GroupedDailyPath + `{day}"
        for attempt in range(3):
            try:
                resp = requests.get(url, params={"adjusted": "true", "apiKey": api_key}, timeout=30)
                if resp.status_code == 429:
                    time.sleep(2 ** attempt)
                    continue
                resp.raise_for_status()
                results = resp.json().get("results") or []
                if not results:
                    return None
                frame = pd.DataFrame(results)
                frame["date"] = day
                return frame
            except requests.RequestException:
                time.sleep(2 ** attempt)
        return None

    frames: List[pd.DataFrame] = []
    with ThreadPoolExecutor(max_workers=int(getattr(self, "max_workers", 8))) as pool:
        futures = {pool.submit(fetch_day, day): day for day in trading_days}
        for future in as_completed(futures):
            frame = future.result()
            if frame is not None:
                frames.append(frame)
    if not frames:
        return pd.DataFrame()

    df = pd.concat(frames, ignore_index=True)
    df = df.rename(columns={"T": "ticker", "o": "open", "h": "high", "l": "low", "c": "close", "v": "volume"})
    df["date"] = pd.to_datetime(df["date"])
    return df.sort_values(["ticker", "date"]).reset_index(drop=True)
`,

	contract.MethodSimpleFeatures: `
def compute_simple_features(self, df: pd.DataFrame) -> pd.DataFrame:
    """Minimal per-ticker features; every window uses prior rows only."""
    if df.empty:
        return df
    df = df.sort_values(["ticker", "date"]).copy()
    df["prev_close"] = df.groupby("ticker")["close"].shift(1)
    df["dollar_volume"] = df["close"] * df["volume"]
    df["adv20_usd"] = df.groupby("ticker")["dollar_volume"].transform(
        lambda s: s.shift(1).rolling(20, min_periods=1).mean()
    )
    df["gap_pct"] = (df["open"] / df["prev_close"] - 1.0) * 100.0
    return df
`,

	contract.MethodApplyFilters: `
def apply_smart_filters(self, df: pd.DataFrame, d0_start_user: str, d0_end_user: str) -> pd.DataFrame:
    """Validate D0 rows only; every historical row outside the range is kept."""
    if df.empty:
        return df
    params = getattr(self, "params", None) or globals().get("P") or {}
    in_range = (df["date"] >= pd.Timestamp(d0_start_user)) & (df["date"] <= pd.Timestamp(d0_end_user))
    valid = (df["close"] >= float(params.get("price_min", 0.0))) & (
        df["adv20_usd"].fillna(0.0) >= float(params.get("adv20_min_usd", 0.0))
    )
    return df[~in_range | valid].reset_index(drop=True)
`,

	contract.MethodFullFeatures: `
def compute_full_features(self, df: pd.DataFrame) -> pd.DataFrame:
    """Full per-ticker feature set on the filtered frame, without lookahead."""
    if df.empty:
        return df
    df = df.sort_values(["ticker", "date"]).copy()
    prev_close = df.groupby("ticker")["close"].shift(1)
    df["true_range"] = np.maximum(
        df["high"] - df["low"],
        np.maximum((df["high"] - prev_close).abs(), (df["low"] - prev_close).abs()),
    )
    df["atr"] = df.groupby("ticker")["true_range"].transform(
        lambda s: s.shift(1).rolling(14, min_periods=1).mean()
    )
    df["ema9"] = df.groupby("ticker")["close"].transform(lambda s: s.ewm(span=9, adjust=False).mean())
    df["ema20"] = df.groupby("ticker")["close"].transform(lambda s: s.ewm(span=20, adjust=False).mean())
    df["high_20d_prev"] = df.groupby("ticker")["high"].transform(
        lambda s: s.shift(1).rolling(20, min_periods=1).max()
    )
    df["range_pct"] = (df["high"] - df["low"]) / prev_close * 100.0
    return df
`,

	contract.MethodDetectPatterns: `
def detect_patterns(self, df: pd.DataFrame, d0_start_user: str, d0_end_user: str) -> pd.DataFrame:
    """Report pattern hits inside the D0 range only."""
    if df.empty:
        return pd.DataFrame()
    params = getattr(self, "params", None) or globals().get("P") or {}
    d0 = df[(df["date"] >= pd.Timestamp(d0_start_user)) & (df["date"] <= pd.Timestamp(d0_end_user))]
    mask = (d0["gap_pct"] >= float(params.get("gap_pct_min", 0.0))) & (d0["close"] > d0["ema9"])
    hits = d0[mask]
    columns = [c for c in ["ticker", "date", "close", "gap_pct", "dollar_volume", "atr"] if c in hits.columns]
    return hits[columns].sort_values(["date", "ticker"]).reset_index(drop=True)
`,
}

var (
	selfCallRe = regexp.MustCompile(`\bself\.(` + strings.Join(contract.CanonicalMethods, "|") + `)\(`)
	selfRe     = regexp.MustCompile(`\bself\b`)
)

// renderMethod returns the canonical body for name with each four-space
// level replaced by unit and the def line sitting base units deep.
func renderMethod(name, unit string, base int) []string {
	src := strings.Trim(canonicalBodies[name], "\n")
	var out []string
	for _, l := range strings.Split(src, "\n") {
		if strings.TrimSpace(l) == "" {
			out = append(out, "")
			continue
		}
		t := strings.TrimLeft(l, " ")
		level := (len(l) - len(t)) / 4
		out = append(out, strings.Repeat(unit, base+level)+t)
	}
	return out
}

// renderFunction returns the canonical body as a module-level function that
// takes the scanner state explicitly instead of self.
func renderFunction(name string) []string {
	out := renderMethod(name, "    ", 0)
	for i, l := range out {
		l = selfCallRe.ReplaceAllString(l, "${1}(state, ")
		out[i] = selfRe.ReplaceAllString(l, "state")
	}
	return out
}
